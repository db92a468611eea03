package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpServer "EstateGuru/api/http"
	"EstateGuru/internal/config"
	"EstateGuru/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. 加载配置并组装组件
	conf := config.GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// 2. 启动 HTTP 服务与后台任务
	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.NewRouter(conf, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.Worker != nil {
		g.Go(func() error {
			zlog.Info("ingest worker starting")
			return app.Worker.Run(gctx)
		})
	}
	if conf.SchedulerConfig.Enabled {
		if err := app.Reindex.Start(conf.SchedulerConfig.ReindexCron); err != nil {
			return fmt.Errorf("start reindex scheduler: %w", err)
		}
		defer app.Reindex.Stop()
		zlog.Info("reindex scheduler started",
			zap.String("cron", conf.SchedulerConfig.ReindexCron),
			zap.Time("next", app.Reindex.Next()))
	}

	// 3. 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zlog.Info("server stopped")
	return err
}

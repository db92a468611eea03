package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"EstateGuru/internal/modules/estate/application/service"
	"EstateGuru/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DirectoryIngester 目录重建索引
type DirectoryIngester interface {
	IngestDirectory(ctx context.Context, dir string) (*service.DirectoryReport, error)
}

// ReindexManager 定时扫描上传目录，把新增或修改过的文件重新入库
type ReindexManager struct {
	cron     *cron.Cron
	ingester DirectoryIngester
	dir      string
	timeout  time.Duration

	mu      sync.Mutex
	entryID cron.EntryID
	last    *service.DirectoryReport
}

func NewReindexManager(ingester DirectoryIngester, dir string, timeout time.Duration) *ReindexManager {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ReindexManager{
		// 上一次没跑完就跳过本次
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ingester: ingester,
		dir:      dir,
		timeout:  timeout,
	}
}

// Start 注册 cron 表达式（5 段或 @every 形式）并启动
func (m *ReindexManager) Start(spec string) error {
	if m.ingester == nil {
		return errors.New("ingester is nil")
	}
	id, err := m.cron.AddFunc(spec, func() { _, _ = m.RunOnce(context.Background()) })
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entryID = id
	m.mu.Unlock()
	m.cron.Start()
	zlog.Info("reindex scheduler started", zap.String("spec", spec), zap.String("dir", m.dir))
	return nil
}

// Stop 等待正在执行的任务结束
func (m *ReindexManager) Stop() {
	<-m.cron.Stop().Done()
	zlog.Info("reindex scheduler stopped")
}

func (m *ReindexManager) RunOnce(ctx context.Context) (*service.DirectoryReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	rep, err := m.ingester.IngestDirectory(ctx, m.dir)
	if err != nil {
		zlog.Warn("reindex failed", zap.String("dir", m.dir), zap.Error(err))
		return rep, err
	}
	m.mu.Lock()
	m.last = rep
	m.mu.Unlock()
	zlog.Info("reindex done", zap.String("dir", m.dir), zap.Int("ingested", rep.Ingested), zap.Int64("ms", time.Since(start).Milliseconds()))
	return rep, nil
}

// Last 最近一次成功执行的结果
func (m *ReindexManager) Last() *service.DirectoryReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Next 下一次触发时间，未启动时为零值
func (m *ReindexManager) Next() time.Time {
	m.mu.Lock()
	id := m.entryID
	m.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return m.cron.Entry(id).Next
}

package queue

import (
	"context"
	"errors"
	"strings"

	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"go.uber.org/zap"
)

// Ingester 执行一次入库
type Ingester interface {
	Ingest(ctx context.Context, req *pipeline.IngestRequest) (*pipeline.IngestResult, error)
}

// IngestConsumerWorker 消费入库事件并执行入库管线
type IngestConsumerWorker struct {
	consumer mq.Consumer
	ingester Ingester
}

func NewIngestConsumerWorker(consumer mq.Consumer, ingester Ingester) *IngestConsumerWorker {
	return &IngestConsumerWorker{consumer: consumer, ingester: ingester}
}

func (w *IngestConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.ingester == nil {
		return errors.New("ingester is nil")
	}
	zlog.Info("ingest consumer started")
	err := w.consumer.Run(ctx, w)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle 只有上游不可用时返回错误（位点不提交，稍后重投）；
// 坏消息和输入错误记录后丢弃
func (w *IngestConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	ev, err := mq.DecodeIngestEvent(msg)
	if err != nil {
		zlog.Warn("ingest consumer invalid event", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}

	res, err := w.ingester.Ingest(ctx, &pipeline.IngestRequest{
		SourceID:     ev.SourceID,
		Filename:     ev.Filename,
		Content:      ev.Content,
		Locality:     ev.Locality,
		PropertyType: ev.PropertyType,
		Force:        ev.Force,
	})
	if err != nil {
		fields := []zap.Field{
			zap.String("event_id", ev.EventID),
			zap.String("filename", ev.Filename),
			zap.String("kind", string(xerr.KindOf(err))),
			zap.String("error", scrubErrMsg(err.Error())),
		}
		if xerr.IsKind(err, xerr.KindUpstreamUnavailable) {
			zlog.Warn("ingest consumer event deferred", fields...)
			return err
		}
		zlog.Warn("ingest consumer event dropped", fields...)
		return nil
	}

	zlog.Info("ingest consumer event done",
		zap.String("event_id", ev.EventID),
		zap.String("source_id", res.SourceID),
		zap.Int("chunks", res.ChunksCreated),
		zap.Bool("unchanged", res.Unchanged),
	)
	return nil
}

func scrubErrMsg(s string) string {
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)
	if strings.Contains(low, "api_key") || strings.Contains(low, "apikey") || strings.Contains(low, "secret") || strings.Contains(s, "sk-") {
		return "redacted"
	}
	if len(s) > 255 {
		return s[:255]
	}
	return s
}

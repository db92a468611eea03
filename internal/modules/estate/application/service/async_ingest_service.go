package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/application/dto/respond"
	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/pkg/util"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"go.uber.org/zap"
)

// AsyncIngestService 把入库请求投递到队列，由 IngestConsumerWorker 执行
type AsyncIngestService interface {
	EnqueueDocument(ctx context.Context, req request.IngestDocumentRequest) (*respond.IngestDocumentRespond, error)
}

type asyncIngestService struct {
	publisher  mq.Publisher
	topic      string
	maxContent int
	parser     DocumentParser
}

func NewAsyncIngestService(publisher mq.Publisher, topic string, maxContentBytes int, parser DocumentParser) AsyncIngestService {
	return &asyncIngestService{publisher: publisher, topic: topic, maxContent: maxContentBytes, parser: parser}
}

// EnqueueDocument 只做入参校验和 PDF 转文本，分块和向量化在消费端完成；
// 消息体是 JSON，二进制内容必须在投递前转成文本
func (s *asyncIngestService) EnqueueDocument(ctx context.Context, req request.IngestDocumentRequest) (*respond.IngestDocumentRespond, error) {
	if s.publisher == nil {
		return nil, errors.New("publisher is nil")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, xerr.Input("document content is empty")
	}
	content, err := extractContent(ctx, s.parser, req.Filename, req.Content)
	if err != nil {
		return nil, err
	}
	if s.maxContent > 0 && len(content) > s.maxContent {
		return nil, xerr.Input("document is too large")
	}

	ev := mq.IngestEvent{
		EventID:      util.GenerateID("ing"),
		SourceID:     strings.TrimSpace(req.SourceID),
		Filename:     strings.TrimSpace(req.Filename),
		Content:      content,
		Locality:     strings.TrimSpace(req.Locality),
		PropertyType: strings.TrimSpace(req.PropertyType),
		Force:        req.Force,
		CreatedAt:    time.Now(),
	}
	msg, err := mq.NewIngestMessage(s.topic, ev)
	if err != nil {
		return nil, err
	}
	res, err := s.publisher.Publish(ctx, msg)
	if err != nil {
		return nil, xerr.Upstream("ingest queue unavailable", err)
	}
	zlog.Info("ingest event published",
		zap.String("event_id", ev.EventID),
		zap.String("filename", ev.Filename),
		zap.Int32("partition", res.Partition),
		zap.Int64("offset", res.Offset))
	return &respond.IngestDocumentRespond{
		SourceID: ev.SourceID,
		Filename: ev.Filename,
		Queued:   true,
		EventID:  ev.EventID,
	}, nil
}

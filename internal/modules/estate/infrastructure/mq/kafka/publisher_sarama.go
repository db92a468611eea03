package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"EstateGuru/internal/modules/estate/infrastructure/mq"

	"github.com/IBM/sarama"
)

type saramaPublisher struct {
	p sarama.SyncProducer
}

// NewPublisher 幂等同步生产者，按 key 哈希分区
func NewPublisher(cfg Config) (mq.Publisher, error) {
	if len(cfg.brokers()) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	sc := baseConfig(cfg.ClientID)
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 200 * time.Millisecond
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	// 文档正文随事件投递
	sc.Producer.MaxMessageBytes = 16 << 20

	p, err := sarama.NewSyncProducer(cfg.brokers(), sc)
	if err != nil {
		return nil, err
	}
	return &saramaPublisher{p: p}, nil
}

func (s *saramaPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return mq.PublishResult{}, err
	}
	if strings.TrimSpace(msg.Topic) == "" {
		return mq.PublishResult{}, errors.New("kafka topic is empty")
	}
	pm := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Value),
	}
	if len(msg.Key) > 0 {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := s.p.SendMessage(pm)
	if err != nil {
		return mq.PublishResult{}, err
	}
	return mq.PublishResult{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}

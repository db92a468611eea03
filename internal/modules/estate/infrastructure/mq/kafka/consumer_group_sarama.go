package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type saramaConsumer struct {
	cg    sarama.ConsumerGroup
	topic string
}

// NewConsumer 消费组从最早位点开始，保证 worker 重启后不丢事件
func NewConsumer(cfg Config) (mq.Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer group id is empty")
	}
	sc := baseConfig(cfg.ClientID)
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.Consumer.Fetch.Max = 16 << 20

	cg, err := sarama.NewConsumerGroup(cfg.brokers(), strings.TrimSpace(cfg.GroupID), sc)
	if err != nil {
		return nil, err
	}
	return &saramaConsumer{cg: cg, topic: strings.TrimSpace(cfg.Topic)}, nil
}

func (c *saramaConsumer) Run(ctx context.Context, h mq.Handler) error {
	if h == nil {
		return errors.New("handler is nil")
	}
	gh := &groupHandler{h: h}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Consume 在每次 rebalance 后返回，需要循环调用
		if err := c.cg.Consume(ctx, []string{c.topic}, gh); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			zlog.Warn("kafka consume failed", zap.String("topic", c.topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *saramaConsumer) Close() error {
	if c == nil || c.cg == nil {
		return nil
	}
	return c.cg.Close()
}

type groupHandler struct {
	h mq.Handler
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := g.h.Handle(sess.Context(), toMessage(m)); err != nil {
				// 不提交位点，rebalance 后重投
				zlog.Warn("kafka handle failed", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
				continue
			}
			sess.MarkMessage(m, "")
		}
	}
}

func toMessage(m *sarama.ConsumerMessage) mq.Message {
	msg := mq.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}

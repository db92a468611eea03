package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Config 入库事件所用的 Kafka 连接参数
type Config struct {
	Brokers     []string
	ClientID    string
	GroupID     string
	Topic       string
	Partitions  int32
	Replication int16
	Retention   time.Duration
}

func (c Config) validate() error {
	if len(c.brokers()) == 0 {
		return errors.New("kafka brokers is empty")
	}
	if strings.TrimSpace(c.Topic) == "" {
		return errors.New("kafka topic is empty")
	}
	return nil
}

func (c Config) brokers() []string {
	out := make([]string, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func baseConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	if id := strings.TrimSpace(clientID); id != "" {
		sc.ClientID = id
	}
	return sc
}

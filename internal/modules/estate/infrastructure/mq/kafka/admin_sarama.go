package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"EstateGuru/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EnsureTopic 主题不存在时创建，已存在直接返回
func EnsureTopic(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	rf := cfg.Replication
	if rf <= 0 {
		rf = 1
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 72 * time.Hour
	}

	admin, err := sarama.NewClusterAdmin(cfg.brokers(), baseConfig(cfg.ClientID))
	if err != nil {
		return err
	}
	defer admin.Close()

	topic := strings.TrimSpace(cfg.Topic)
	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[topic]; ok {
		return nil
	}

	ms := strconv.FormatInt(retention.Milliseconds(), 10)
	err = admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: rf,
		ConfigEntries:     map[string]*string{"retention.ms": &ms},
	}, false)
	if err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return err
	}
	zlog.Info("kafka topic ready", zap.String("topic", topic), zap.Int32("partitions", partitions))
	return nil
}

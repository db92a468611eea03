package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Topic: "estate.ingest"}.validate())
	assert.Error(t, Config{Brokers: []string{" "}, Topic: "estate.ingest"}.validate())
	assert.Error(t, Config{Brokers: []string{"localhost:9092"}}.validate())
	assert.NoError(t, Config{Brokers: []string{"localhost:9092"}, Topic: "estate.ingest"}.validate())
}

func TestToMessageCopiesHeaders(t *testing.T) {
	m := toMessage(&sarama.ConsumerMessage{
		Topic: "estate.ingest",
		Key:   []byte("k"),
		Value: []byte("v"),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("ingest_document")},
			{Key: nil, Value: []byte("skip")},
			nil,
		},
	})
	assert.Equal(t, "estate.ingest", m.Topic)
	assert.Equal(t, map[string]string{"event_type": "ingest_document"}, m.Headers)
}

func TestNewConsumerRequiresGroup(t *testing.T) {
	_, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}, Topic: "estate.ingest"})
	assert.Error(t, err)
}

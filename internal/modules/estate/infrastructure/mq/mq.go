package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Message 与具体 broker 无关的消息
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type PublishResult struct {
	Partition int32
	Offset    int64
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (PublishResult, error)
	Close() error
}

// Handler 返回 nil 才会提交位点
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

type Consumer interface {
	Run(ctx context.Context, h Handler) error
	Close() error
}

const HeaderEventType = "event_type"

const EventTypeIngestDocument = "ingest_document"

// IngestEvent 异步入库事件，内容随消息一起投递
type IngestEvent struct {
	EventID      string    `json:"event_id"`
	SourceID     string    `json:"source_id,omitempty"`
	Filename     string    `json:"filename"`
	Content      string    `json:"content"`
	Locality     string    `json:"locality,omitempty"`
	PropertyType string    `json:"property_type,omitempty"`
	Force        bool      `json:"force,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewIngestMessage 编码事件；key 使用文件名，同一文件落在同一分区保证顺序
func NewIngestMessage(topic string, ev IngestEvent) (Message, error) {
	if strings.TrimSpace(topic) == "" {
		return Message{}, errors.New("topic is empty")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Message{}, err
	}
	key := ev.SourceID
	if key == "" {
		key = ev.Filename
	}
	return Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   raw,
		Headers: map[string]string{HeaderEventType: EventTypeIngestDocument},
	}, nil
}

func DecodeIngestEvent(msg Message) (IngestEvent, error) {
	var ev IngestEvent
	if t, ok := msg.Headers[HeaderEventType]; ok && t != EventTypeIngestDocument {
		return ev, errors.New("unexpected event type: " + t)
	}
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

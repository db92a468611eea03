package mq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MemoryBus 进程内队列，未配置 Kafka 时替代 broker；同时实现 Publisher 与 Consumer
type MemoryBus struct {
	ch     chan Message
	offset atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

var ErrBusClosed = errors.New("bus closed")

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{ch: make(chan Message, buffer), done: make(chan struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, msg Message) (PublishResult, error) {
	select {
	case <-b.done:
		return PublishResult{}, ErrBusClosed
	default:
	}
	select {
	case b.ch <- msg:
		return PublishResult{Offset: b.offset.Add(1) - 1}, nil
	case <-b.done:
		return PublishResult{}, ErrBusClosed
	case <-ctx.Done():
		return PublishResult{}, ctx.Err()
	}
}

// Run 逐条处理直到 ctx 结束或 Close；处理失败的消息不重投
func (b *MemoryBus) Run(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("handler is nil")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case msg := <-b.ch:
			_ = h.Handle(ctx, msg)
		}
	}
}

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

package session

import (
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	sess    conversation.Session
	expires time.Time
}

// MemoryStore 进程内会话存储，过期惰性清理
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: map[string]memoryEntry{}}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.ttl > 0 && s.now().After(e.expires) {
		delete(s.items, sessionID)
		return nil, repository.ErrNotFound
	}
	out := e.sess
	out.Messages = conversation.Tail(e.sess.Messages, 0)
	return &out, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *conversation.Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.Messages = conversation.Tail(sess.Messages, 0)
	cp.UpdatedAt = s.now()
	s.items[sess.SessionID] = memoryEntry{sess: cp, expires: cp.UpdatedAt.Add(s.ttl)}
	s.gcLocked()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

func (s *MemoryStore) gcLocked() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for id, e := range s.items {
		if now.After(e.expires) {
			delete(s.items, id)
		}
	}
}

var _ repository.SessionStore = (*MemoryStore)(nil)

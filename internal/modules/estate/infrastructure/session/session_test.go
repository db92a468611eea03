package session

import (
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/pkg/xerr"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *conversation.Session {
	return &conversation.Session{
		SessionID: "s-1",
		AgentType: conversation.AgentRent,
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "2bhk for rent in wakad"},
			{Role: conversation.RoleAssistant, Content: "Here are two options."},
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	in := sample()
	require.NoError(t, s.Save(ctx, in))

	in.Messages[0].Content = "mutated"
	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "2bhk for rent in wakad", got.Messages[0].Content)
	assert.Equal(t, conversation.AgentRent, got.AgentType)

	require.NoError(t, s.Delete(ctx, "s-1"))
	_, err = s.Get(ctx, "s-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Save(ctx, sample()))

	now = now.Add(30 * time.Second)
	_, err := s.Get(ctx, "s-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "s-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	err := s.Save(context.Background(), &conversation.Session{})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))

	bad := sample()
	bad.Messages = append(bad.Messages, conversation.Message{Role: "system", Content: "x"})
	err = s.Save(context.Background(), bad)
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	s := NewRedisStore(client, "", 10*time.Minute)
	require.NoError(t, s.Save(ctx, sample()))
	assert.True(t, mr.Exists(defaultKeyPrefix+"s-1"))
	assert.Equal(t, 10*time.Minute, mr.TTL(defaultKeyPrefix+"s-1"))

	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, conversation.RoleAssistant, got.Messages[1].Role)

	mr.FastForward(11 * time.Minute)
	_, err = s.Get(ctx, "s-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.Get(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

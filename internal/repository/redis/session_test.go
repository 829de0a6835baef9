package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/repository/redis"
	"github.com/Rrens/oneonone-bot/internal/security"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set - run as integration test")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	client := redis.NewClientFrom(rdb)
	require.NoError(t, client.Ping(context.Background()))
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestSessionStore_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	store := redis.NewSessionStore(client, time.Minute)
	ctx := context.Background()

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	meeting := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	session := &domain.Session{
		UserID:    "u1",
		StepIndex: 2,
		Answers:   []domain.Answer{{Date: meeting}, {Text: "Feliz"}},
	}
	require.NoError(t, store.Put(ctx, session))

	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.StepIndex)
	assert.True(t, meeting.Equal(got.Answers[0].Date))
	assert.Equal(t, "Feliz", got.Answers[1].Text)

	require.NoError(t, store.Delete(ctx, "u1"))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_Sealed(t *testing.T) {
	client := newTestClient(t)
	sealer, err := security.NewSealer(make([]byte, 32))
	require.NoError(t, err)

	store := redis.NewSessionStore(client, time.Minute).WithSealer(sealer)
	ctx := context.Background()

	session := &domain.Session{
		UserID:    "u2",
		StepIndex: 1,
		Answers:   []domain.Answer{{Text: "Comentário sigiloso"}},
	}
	require.NoError(t, store.Put(ctx, session))

	rdb := goredis.NewClient(&goredis.Options{Addr: os.Getenv("REDIS_TEST_ADDR"), DB: 15})
	defer rdb.Close()
	raw, err := rdb.Get(ctx, "oneonone:session:u2").Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sigiloso")

	got, err := store.Get(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Comentário sigiloso", got.Answers[0].Text)

	plain := redis.NewSessionStore(client, time.Minute)
	_, err = plain.Get(ctx, "u2")
	assert.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	client := newTestClient(t)
	limiter := redis.NewRateLimiter(client, 2, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "message %d", i)
	}

	d, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other users keep their own window")
}

package customdata

import (
	"context"
	stderrors "errors"
	"maps"
	"sync"
	"testing"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHash emulates the Redis hash commands in memory
type fakeHash struct {
	hashes  map[string]map[string]string
	expires map[string]time.Duration
	err     error
}

func newFakeHash() *fakeHash {
	return &fakeHash{hashes: map[string]map[string]string{}, expires: map[string]time.Duration{}}
}

func (f *fakeHash) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeHash) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeHash) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	if f.err != nil {
		return redis.NewMapStringStringResult(nil, f.err)
	}
	return redis.NewMapStringStringResult(maps.Clone(f.hashes[key]), nil)
}

func (f *fakeHash) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "currentNodeName", "Review"))
	v, ok, err := s.Get(ctx, "currentNodeName")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Review", v)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	all["currentNodeName"] = "mutated"

	v, _, _ = s.Get(ctx, "currentNodeName")
	assert.Equal(t, "Review", v)
}

func TestMemoryStoreConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(ctx, string(rune('a'+i%26)), "x")
		}(i)
	}
	wg.Wait()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 26)
}

func TestMemoryProviderScopesByExecution(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	require.NoError(t, p.For("exec-1").Set(ctx, "k", "one"))
	require.NoError(t, p.For("exec-2").Set(ctx, "k", "two"))

	v, _, _ := p.For("exec-1").Get(ctx, "k")
	assert.Equal(t, "one", v)

	p.Forget("exec-1")
	_, ok, _ := p.For("exec-1").Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisProvider(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHash()
	p := newRedisProvider(fake, nil, "", time.Hour)

	store := p.For("exec-9")
	require.NoError(t, store.Set(ctx, "executionId", "exec-9"))

	assert.Equal(t, "exec-9", fake.hashes["gportal:customdata:exec-9"]["executionId"])
	assert.Equal(t, time.Hour, fake.expires["gportal:customdata:exec-9"])

	v, ok, err := store.Get(ctx, "executionId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "exec-9", v)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"executionId": "exec-9"}, all)

	assert.NoError(t, p.Close())
}

func TestRedisStoreErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHash()
	fake.err = stderrors.New("connection reset")
	store := newRedisProvider(fake, nil, "p:", 0).For("e")

	_, _, err := store.Get(ctx, "k")
	assert.True(t, errors.IsCode(err, errors.CodeExternalService))
	assert.True(t, errors.IsCode(store.Set(ctx, "k", "v"), errors.CodeExternalService))
	_, err = store.GetAll(ctx)
	assert.True(t, errors.IsCode(err, errors.CodeExternalService))
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.FromEnv()

	cfg.CustomData.Backend = "memory"
	p, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryProvider{}, p)

	cfg.CustomData.Backend = "etcd"
	_, err = New(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

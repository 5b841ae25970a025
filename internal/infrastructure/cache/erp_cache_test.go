package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type cacheCase struct {
	name string
	make func(t *testing.T) (erp.Cache, func(time.Duration))
}

// backends returns each cache with a function that moves its clock forward.
func backends() []cacheCase {
	return []cacheCase{
		{"redis", func(t *testing.T) (erp.Cache, func(time.Duration)) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedisERPCache(client), mr.FastForward
		}},
		{"memory", func(t *testing.T) (erp.Cache, func(time.Duration)) {
			c := NewInMemoryERPCache(time.Hour)
			t.Cleanup(func() { c.Close() })
			now := time.Now()
			c.now = func() time.Time { return now }
			return c, func(d time.Duration) { now = now.Add(d) }
		}},
	}
}

func TestERPCache_GetSet(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			c, _ := bc.make(t)
			ctx := context.Background()
			tenant := uuid.New()
			params := erp.Params{erp.ParamStartDate: "2024-01-01"}

			_, ok := c.Get(ctx, tenant, erp.DomainPatients, params)
			assert.False(t, ok)

			c.Set(ctx, tenant, erp.DomainPatients, params, []byte(`[{"name":"Maria"}]`))

			got, ok := c.Get(ctx, tenant, erp.DomainPatients, params)
			require.True(t, ok)
			assert.JSONEq(t, `[{"name":"Maria"}]`, string(got))

			_, ok = c.Get(ctx, tenant, erp.DomainPatients, erp.Params{erp.ParamStartDate: "2024-02-01"})
			assert.False(t, ok, "different filters use different entries")

			_, ok = c.Get(ctx, uuid.New(), erp.DomainPatients, params)
			assert.False(t, ok, "entries are tenant scoped")
		})
	}
}

func TestERPCache_TTLPerDomain(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			c, advance := bc.make(t)
			ctx := context.Background()
			tenant := uuid.New()

			c.Set(ctx, tenant, erp.DomainPatients, nil, []byte("p"))
			c.Set(ctx, tenant, erp.DomainBilling, nil, []byte("b"))

			advance(1801 * time.Second)
			_, ok := c.Get(ctx, tenant, erp.DomainBilling, nil)
			assert.False(t, ok, "billing expires after 1800s")
			_, ok = c.Get(ctx, tenant, erp.DomainPatients, nil)
			assert.True(t, ok, "patients live for 3600s")

			advance(1800 * time.Second)
			_, ok = c.Get(ctx, tenant, erp.DomainPatients, nil)
			assert.False(t, ok)
		})
	}
}

func TestERPCache_InvalidateDomain(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			c, _ := bc.make(t)
			ctx := context.Background()
			tenant := uuid.New()
			other := uuid.New()

			c.Set(ctx, tenant, erp.DomainInventory, nil, []byte("i1"))
			c.Set(ctx, tenant, erp.DomainInventory, erp.Params{erp.ParamCategory: "MEDICAMENTOS"}, []byte("i2"))
			c.Set(ctx, tenant, erp.DomainPatients, nil, []byte("p"))
			c.Set(ctx, other, erp.DomainInventory, nil, []byte("o"))

			inventory := erp.DomainInventory
			n, err := c.Invalidate(ctx, tenant, &inventory)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, ok := c.Get(ctx, tenant, erp.DomainInventory, nil)
			assert.False(t, ok)
			_, ok = c.Get(ctx, tenant, erp.DomainPatients, nil)
			assert.True(t, ok, "other domains stay cached")
			_, ok = c.Get(ctx, other, erp.DomainInventory, nil)
			assert.True(t, ok, "other tenants stay cached")
		})
	}
}

func TestERPCache_InvalidateTenant(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			c, _ := bc.make(t)
			ctx := context.Background()
			tenant := uuid.New()

			for _, d := range erp.AllDomains() {
				c.Set(ctx, tenant, d, nil, []byte(d))
			}

			n, err := c.Invalidate(ctx, tenant, nil)
			require.NoError(t, err)
			assert.Equal(t, len(erp.AllDomains()), n)

			n, err = c.Invalidate(ctx, tenant, nil)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestRedisERPCache_InvalidateManyKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisERPCache(client)
	ctx := context.Background()
	tenant := uuid.New()

	for i := 0; i < 1200; i++ {
		c.Set(ctx, tenant, erp.DomainEncounters, erp.Params{erp.ParamStartDate: fmt.Sprintf("d%d", i)}, []byte("x"))
	}

	encounters := erp.DomainEncounters
	n, err := c.Invalidate(ctx, tenant, &encounters)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
	assert.Empty(t, mr.Keys())
}

func TestRedisERPCache_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	core, logs := observer.New(zap.WarnLevel)
	c := NewRedisERPCache(client, WithRedisLogger(zap.New(core)))
	ctx := context.Background()
	tenant := uuid.New()

	mr.Close()

	c.Set(ctx, tenant, erp.DomainPatients, nil, []byte("x"))
	_, ok := c.Get(ctx, tenant, erp.DomainPatients, nil)
	assert.False(t, ok)

	assert.Equal(t, 1, logs.FilterMessage("ERP cache write failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("ERP cache read failed").Len())

	_, err := c.Invalidate(ctx, tenant, nil)
	assert.Error(t, err, "invalidation reports backend failures")
}

func TestRedisERPCache_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tenant := uuid.MustParse("7b0c0d59-1c1f-4d55-9d43-58a8b4e0a001")
	NewRedisERPCache(client).Set(context.Background(), tenant, erp.DomainPatients, nil, []byte("x"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Regexp(t, `^erp:7b0c0d59-1c1f-4d55-9d43-58a8b4e0a001:patients:[0-9a-f]{16}$`, keys[0])
	assert.Equal(t, 3600*time.Second, mr.TTL(keys[0]))
}

func TestParamsHash(t *testing.T) {
	a := paramsHash(erp.Params{erp.ParamStartDate: "2024-01-01", erp.ParamEndDate: "2024-01-31"})
	b := paramsHash(erp.Params{erp.ParamEndDate: "2024-01-31", erp.ParamStartDate: "2024-01-01"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	assert.Equal(t, paramsHash(nil), paramsHash(erp.Params{erp.ParamCategory: ""}))
	assert.NotEqual(t, a, paramsHash(nil))
}

func TestInMemoryERPCache_Cleanup(t *testing.T) {
	c := NewInMemoryERPCache(time.Hour)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set(context.Background(), uuid.New(), erp.DomainBilling, nil, []byte("x"))
	assert.Equal(t, 1, c.Size())

	now = now.Add(time.Hour)
	c.cleanup()
	assert.Equal(t, 0, c.Size())
}

func TestInMemoryERPCache_CloseIsIdempotent(t *testing.T) {
	c := NewInMemoryERPCache(time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestERPCacheFactory(t *testing.T) {
	t.Run("memory backend never dials", func(t *testing.T) {
		f := NewERPCacheFactory(config.RedisConfig{})
		f.dial = func(config.RedisConfig) (*redis.Client, error) {
			t.Fatal("unexpected dial")
			return nil, nil
		}

		c, client, err := f.Create(BackendMemory)
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &InMemoryERPCache{}, c)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewERPCacheFactory(config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)})

		c, client, err := f.Create(BackendRedis)
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Close()
		assert.IsType(t, &RedisERPCache{}, c)
	})

	t.Run("falls back when redis is unreachable", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := NewERPCacheFactory(config.RedisConfig{}, WithLogger(zap.New(core)))
		f.dial = func(config.RedisConfig) (*redis.Client, error) {
			return nil, errors.New("connection refused")
		}

		c, client, err := f.Create(BackendRedis)
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &InMemoryERPCache{}, c)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewERPCacheFactory(config.RedisConfig{}, WithInMemoryFallback(false))
		f.dial = func(config.RedisConfig) (*redis.Client, error) {
			return nil, errors.New("connection refused")
		}

		_, _, err := f.Create(BackendRedis)
		assert.Error(t, err)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}

package kv

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	redisStore, _ := newRedisBackend(t)
	out := map[string]Backend{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
	if dsn := os.Getenv("INVOICER_TEST_PG_DSN"); dsn != "" {
		pool, err := pgxpool.New(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		table := "kv_store_test"
		_, _ = pool.Exec(context.Background(), `DROP TABLE IF EXISTS kv_store_test, kv_store_test_sequences`)
		pg := NewPostgresStore(pool, table, "")
		require.NoError(t, pg.EnsureSchema(context.Background()))
		out["postgres"] = pg
	}
	return out
}

func sortedStrings(values []json.RawMessage) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}

func TestBackendPointOperations(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "invoice:missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "invoice:1", json.RawMessage(`{"id":"1"}`)))
			got, err := store.Get(ctx, "invoice:1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"1"}`, string(got))

			require.NoError(t, store.Set(ctx, "invoice:1", json.RawMessage(`{"id":"1","v":2}`)))
			got, err = store.Get(ctx, "invoice:1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"1","v":2}`, string(got))

			require.NoError(t, store.Delete(ctx, "invoice:1"))
			_, err = store.Get(ctx, "invoice:1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, "invoice:1"), "deleting a missing key succeeds")
		})
	}
}

func TestBackendGetByPrefix(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.GetByPrefix(ctx, "invoice:")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			require.NoError(t, store.Set(ctx, "invoice:a", json.RawMessage(`1`)))
			require.NoError(t, store.Set(ctx, "invoice:b", json.RawMessage(`2`)))
			require.NoError(t, store.Set(ctx, "invoices_archive:c", json.RawMessage(`3`)))
			require.NoError(t, store.Set(ctx, "client:d", json.RawMessage(`4`)))

			got, err := store.GetByPrefix(ctx, "invoice:")
			require.NoError(t, err)
			assert.Equal(t, []string{"1", "2"}, sortedStrings(got))
		})
	}
}

func TestBackendSequence(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SeedIfAbsent(ctx, "invoice", 7))
			require.NoError(t, store.SeedIfAbsent(ctx, "invoice", 100), "second seed is ignored")

			v, err := store.Next(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, int64(8), v)

			v, err = store.Next(ctx, "other")
			require.NoError(t, err)
			assert.Equal(t, int64(1), v)
		})
	}
}

func TestBackendSequenceConcurrent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 50
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seen = make(map[int64]struct{})
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					v, err := store.Next(ctx, "concurrent")
					assert.NoError(t, err)
					mu.Lock()
					seen[v] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()
			assert.Len(t, seen, n)
		})
	}
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	store, mr := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "invoice:1", json.RawMessage(`{}`)))
	_, err := store.Next(ctx, "invoice")
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:invoice:1"))
	assert.True(t, mr.Exists("test:sequence:invoice"))

	got, err := store.GetByPrefix(ctx, "invoice:")
	require.NoError(t, err)
	assert.Len(t, got, 1, "sequence key must stay outside the invoice namespace")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
	assert.Equal(t, "invoice:", escapeGlob("invoice:"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type doc struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, store, "doc:1", doc{Name: "x"}))

	var got doc
	require.NoError(t, GetJSON(ctx, store, "doc:1", &got))
	assert.Equal(t, "x", got.Name)

	require.NoError(t, store.Set(ctx, "doc:bad", json.RawMessage(`{`)))
	assert.Error(t, GetJSON(ctx, store, "doc:bad", &got))
	assert.ErrorIs(t, GetJSON(ctx, store, "doc:none", &got), ErrNotFound)
}

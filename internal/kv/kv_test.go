package kv_test

import (
	"context"
	"testing"
	"time"

	"cardapio/internal/kv"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func exerciseStore(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "cart", `[{"quantity":1}]`))
	value, found, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"quantity":1}]`, value)

	require.NoError(t, store.Set(ctx, "cart", `[]`))
	value, _, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, store.Remove(ctx, "cart"))
	_, found, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent key is not an error.
	assert.NoError(t, store.Remove(ctx, "cart"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, kv.NewMemoryStore())
}

func TestGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:kv_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&kv.Entry{}))

	exerciseStore(t, kv.NewGormStore(db))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, kv.NewRedisStore(client, 0))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := kv.NewRedisStore(client, time.Hour)
	require.NoError(t, store.Set(context.Background(), "cart", "x"))
	assert.Equal(t, time.Hour, mr.TTL("cart"))

	mr.FastForward(2 * time.Hour)
	_, found, err := store.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := kv.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = kv.NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	base := kv.NewMemoryStore()
	a := kv.Namespace(base, "session:a")
	b := kv.Namespace(base, "session:b:")

	require.NoError(t, a.Set(ctx, "cart", "A"))
	require.NoError(t, b.Set(ctx, "cart", "B"))

	value, found, err := base.Get(ctx, "session:a:cart")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "A", value)

	value, _, _ = b.Get(ctx, "cart")
	assert.Equal(t, "B", value)

	require.NoError(t, a.Remove(ctx, "cart"))
	assert.Equal(t, 1, base.Len())
	exerciseStore(t, a)
}

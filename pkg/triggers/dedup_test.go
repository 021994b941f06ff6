package triggers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "project:p-1:budget_change:tok-1",
		DedupKey("project", "p-1", models.TriggerTypeBudgetChange, "tok-1"))
}

func exerciseDedupStore(t *testing.T, store DedupStore) {
	t.Helper()

	ctx := t.Context()

	claimed, err := store.Claim(ctx, "project:p-1:budget_change:tok-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "project:p-1:budget_change:tok-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = store.Claim(ctx, "project:p-1:budget_change:tok-2")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, store.Release(ctx, "project:p-1:budget_change:tok-1"))

	claimed, err = store.Claim(ctx, "project:p-1:budget_change:tok-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := store.Claim(ctx, "project:p-2:budget_change:tok-1")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryDedupStore(t *testing.T) {
	exerciseDedupStore(t, NewMemoryDedupStore(time.Hour))
}

func TestMemoryDedupStore_Expiry(t *testing.T) {
	store := NewMemoryDedupStore(50 * time.Millisecond)

	claimed, err := store.Claim(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Eventually(t, func() bool {
		ok, _ := store.Claim(t.Context(), "k")

		return ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisDedupStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	store, err := NewRedisDedupStoreFromURL(ctx, "redis://"+endpoint, time.Hour)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	exerciseDedupStore(t, store)

	ttl, err := store.client.TTL(ctx, redisKeyPrefix+"project:p-1:budget_change:tok-2").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestNewRedisDedupStoreFromURL_InvalidURL(t *testing.T) {
	_, err := NewRedisDedupStoreFromURL(t.Context(), "not a url", time.Hour)
	require.Error(t, err)
}

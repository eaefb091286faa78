package bunstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/store/bunstore"
)

func openTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	store, err := bunstore.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestStoreImplementsDurableStore(t *testing.T) {
	var _ authflow.DurableStore = openTestStore(t)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// Empty store yields an empty token, not an error.
	token, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.SetToken(ctx, "token-one"))

	token, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-one", token)

	// A second write replaces the stored value.
	require.NoError(t, store.SetToken(ctx, "token-two"))

	token, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-two", token)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.SetToken(ctx, "token-one"))
	require.NoError(t, store.Clear(ctx))

	token, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

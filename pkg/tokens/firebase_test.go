package tokens

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFirebaseTestStore(t *testing.T, handler http.HandlerFunc) *FirebaseStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &FirebaseStore{databaseURL: srv.URL, client: srv.Client()}
}

func TestFirebaseStore_Get(t *testing.T) {
	store := newFirebaseTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/refresh_tokens/hotmail.json", r.URL.Path)
		fmt.Fprint(w, `"rt-1"`)
	})

	value, err := store.Get(context.Background(), StoreKey)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", value)
}

func TestFirebaseStore_GetMissing(t *testing.T) {
	store := newFirebaseTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		// Firebase returns JSON null for an absent path.
		fmt.Fprint(w, `null`)
	})

	_, err := store.Get(context.Background(), StoreKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value stored")
}

func TestFirebaseStore_Set(t *testing.T) {
	var gotBody string
	store := newFirebaseTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/refresh_tokens/hotmail.json", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(body)
		fmt.Fprint(w, `"rt-2"`)
	})

	require.NoError(t, store.Set(context.Background(), StoreKey, "rt-2"))
	assert.Equal(t, `"rt-2"`, gotBody)
}

func TestFirebaseStore_SetFailure(t *testing.T) {
	store := newFirebaseTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := store.Set(context.Background(), StoreKey, "rt-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.Error(t, err)

	require.NoError(t, store.Set(ctx, "k", "v"))
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

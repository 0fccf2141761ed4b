package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnnvv/peeple/match"
	"github.com/arnnvv/peeple/match/memstore"
)

// countingDirectory records how many batch lookups reach the store.
type countingDirectory struct {
	match.Directory
	mu     sync.Mutex
	calls  int
	lastIn []string
}

func (d *countingDirectory) GetProfiles(ctx context.Context, ids []string) (map[string]*match.Profile, error) {
	d.mu.Lock()
	d.calls++
	d.lastIn = append([]string(nil), ids...)
	d.mu.Unlock()
	return d.Directory.GetProfiles(ctx, ids)
}

func TestProfileLoaderBatches(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	for _, id := range []string{"alice", "bob", "carl"} {
		require.NoError(t, store.UpsertProfile(ctx, &match.Profile{ID: id, Name: id, Gender: match.GenderOther}))
	}
	dir := &countingDirectory{Directory: store}
	loaders := NewDataLoaders(dir)

	profiles, errs := loaders.ProfileLoader.LoadMany(ctx, []string{"alice", "ghost", "carl"})()
	require.Len(t, profiles, 3)
	assert.Equal(t, "alice", profiles[0].ID)
	assert.Equal(t, "carl", profiles[2].ID)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], match.ErrNotFound)
	assert.Equal(t, 1, dir.calls)
	assert.ElementsMatch(t, []string{"alice", "ghost", "carl"}, dir.lastIn)

	// Cached keys do not hit the store again.
	p, err := loaders.ProfileLoader.Load(ctx, "alice")()
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, 1, dir.calls)
}

func TestDataLoaderMiddleware(t *testing.T) {
	var got *DataLoaders
	h := DataLoaderMiddleware(memstore.New())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetDataLoadersFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	assert.NotNil(t, got.ProfileLoader)
	assert.Nil(t, GetDataLoadersFromContext(context.Background()))
}

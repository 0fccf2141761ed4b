package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnnvv/peeple/match"
	"github.com/arnnvv/peeple/match/memstore"
	"github.com/arnnvv/peeple/seed"
)

func testOptions() seed.Options {
	o := seed.DefaultOptions()
	o.Count = 40
	o.Seed = 7
	o.Now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return o
}

func TestProfilesAreDeterministic(t *testing.T) {
	a := seed.Profiles(testOptions())
	b := seed.Profiles(testOptions())
	require.Len(t, a, 40)
	assert.Equal(t, a, b)

	other := testOptions()
	other.Seed = 8
	assert.NotEqual(t, a[5].ID, seed.Profiles(other)[5].ID)
}

func TestProfilesTestUsers(t *testing.T) {
	ps := seed.Profiles(testOptions())
	one, two := ps[0], ps[1]
	assert.Equal(t, seed.UserID(7, 0), one.ID)
	assert.Equal(t, match.TierPremium, one.Tier)
	assert.Contains(t, one.AcceptedGenders(), two.Gender)
	assert.Contains(t, two.AcceptedGenders(), one.Gender)
	assert.True(t, one.BirthDate.Known())
}

func TestRunMatchesTestUsers(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := match.NewEngine(store)
	o := testOptions()

	st, err := seed.Run(ctx, store, engine, o)
	require.NoError(t, err)
	assert.Equal(t, o.Count, st.Users)
	assert.GreaterOrEqual(t, st.Likes, 2)
	assert.GreaterOrEqual(t, st.Matches, 1)
	assert.Len(t, store.Interactions(), st.Likes+st.Passes)
	assert.Len(t, store.Matches(), st.Matches)

	m, err := store.FindActiveMatch(ctx, seed.UserID(o.Seed, 0), seed.UserID(o.Seed, 1))
	require.NoError(t, err)
	require.NotNil(t, m)

	// Seeded swipes never resurface in the actor's feed.
	for _, id := range []string{seed.UserID(o.Seed, 0), seed.UserID(o.Seed, 1)} {
		cands, err := engine.SelectCandidates(ctx, id)
		require.NoError(t, err)
		for _, c := range cands {
			assert.NotEqual(t, seed.UserID(o.Seed, 0), c.ID)
			assert.NotEqual(t, seed.UserID(o.Seed, 1), c.ID)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	o := testOptions()
	require.NoError(t, o.Validate())

	o.Count = 1
	assert.Error(t, o.Validate())

	o = testOptions()
	o.LikeRate, o.PassRate = 0.7, 0.5
	assert.Error(t, o.Validate())

	o = testOptions()
	o.PremiumRate = 1.5
	assert.Error(t, o.Validate())
}

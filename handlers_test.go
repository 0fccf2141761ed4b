package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnnvv/peeple/match"
)

// ============================================================================
// PROFILE ENDPOINTS
// ============================================================================

func TestProfileHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("alice", match.GenderFemale, match.TierPremium, match.GenderMale)
	env.addUser("bob", match.GenderMale, match.TierBasic)

	t.Run("Me", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/me", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decodeBody[MeResponse](t, rec)
		assert.Equal(t, "alice", me.ID)
		assert.Equal(t, match.TierPremium, me.Tier)
		assert.Equal(t, []match.Gender{match.GenderMale}, me.Preference.Genders)
		require.NotNil(t, me.BirthDate)
		require.NotNil(t, me.Age)
	})

	t.Run("MeWithoutPreference", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/me", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"genders":[]`)
	})

	t.Run("MeUnknown", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/me", "ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("PublicProfileHidesPreferences", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/users/alice", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "preference")
		assert.NotContains(t, rec.Body.String(), "tier")
		p := decodeBody[PublicProfile](t, rec)
		assert.Equal(t, "Alice", p.Name)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/users/ghost", "bob", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
	})
}

// ============================================================================
// FEED
// ============================================================================

func feedEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	env.addUser("alice", match.GenderFemale, match.TierPremium, match.GenderMale)
	env.addUser("beth", match.GenderFemale, match.TierBasic, match.GenderMale)
	env.addUser("bob", match.GenderMale, match.TierBasic, match.GenderFemale)
	env.addUser("carl", match.GenderMale, match.TierBasic, match.GenderFemale)
	env.addUser("dan", match.GenderMale, match.TierBasic, match.GenderFemale)
	env.addUser("eve", match.GenderFemale, match.TierBasic, match.GenderMale)

	for _, target := range []string{"alice", "beth"} {
		_, err := env.srv.engine.RecordAction(context.Background(), "dan", target, match.KindLike)
		require.NoError(t, err)
	}
	return env
}

func feedIDs(resp FeedResponse) []string {
	out := make([]string, len(resp.Candidates))
	for i, c := range resp.Candidates {
		out[i] = c.ID
	}
	return out
}

func TestFeedSuite(t *testing.T) {
	t.Run("LikedYouFirst", func(t *testing.T) {
		env := feedEnv(t)
		rec := env.do(http.MethodGet, "/feed", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[FeedResponse](t, rec)
		assert.Equal(t, []string{"dan", "bob", "carl"}, feedIDs(resp))
		assert.False(t, resp.HasMore)
	})

	t.Run("PremiumSeesLikedYou", func(t *testing.T) {
		env := feedEnv(t)
		resp := decodeBody[FeedResponse](t, env.do(http.MethodGet, "/feed", "alice", nil))
		require.Len(t, resp.Candidates, 3)
		require.NotNil(t, resp.Candidates[0].LikedYou)
		assert.True(t, *resp.Candidates[0].LikedYou)
		require.NotNil(t, resp.Candidates[1].LikedYou)
		assert.False(t, *resp.Candidates[1].LikedYou)
	})

	t.Run("BasicDoesNotSeeLikedYou", func(t *testing.T) {
		env := feedEnv(t)
		rec := env.do(http.MethodGet, "/feed", "beth", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "liked_you")
		// Ordering still puts the liker first.
		assert.Equal(t, []string{"dan", "bob", "carl"}, feedIDs(decodeBody[FeedResponse](t, rec)))
	})

	t.Run("Paging", func(t *testing.T) {
		env := feedEnv(t)
		first := decodeBody[FeedResponse](t, env.do(http.MethodGet, "/feed?limit=2", "alice", nil))
		assert.Equal(t, []string{"dan", "bob"}, feedIDs(first))
		assert.True(t, first.HasMore)

		second := decodeBody[FeedResponse](t, env.do(http.MethodGet, "/feed?limit=2&offset=2", "alice", nil))
		assert.Equal(t, []string{"carl"}, feedIDs(second))
		assert.False(t, second.HasMore)

		past := decodeBody[FeedResponse](t, env.do(http.MethodGet, "/feed?offset=10", "alice", nil))
		assert.Empty(t, past.Candidates)
		assert.NotNil(t, past.Candidates)
	})

	t.Run("InvalidPaging", func(t *testing.T) {
		env := feedEnv(t)
		for _, q := range []string{"?limit=abc", "?offset=-1", "?limit=-5"} {
			rec := env.do(http.MethodGet, "/feed"+q, "alice", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("SwipedUsersDisappear", func(t *testing.T) {
		env := feedEnv(t)
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "pass"}).Code)
		resp := decodeBody[FeedResponse](t, env.do(http.MethodGet, "/feed", "alice", nil))
		assert.Equal(t, []string{"dan", "carl"}, feedIDs(resp))
	})

	t.Run("UnknownRequester", func(t *testing.T) {
		env := feedEnv(t)
		rec := env.do(http.MethodGet, "/feed", "ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// ============================================================================
// SWIPES
// ============================================================================

func TestSwipeSuite(t *testing.T) {
	setup := func(t *testing.T) *testEnv {
		env := newTestEnv(t)
		env.addUser("alice", match.GenderFemale, match.TierBasic, match.GenderMale)
		env.addUser("bob", match.GenderMale, match.TierBasic, match.GenderFemale)
		return env
	}

	t.Run("MutualLike", func(t *testing.T) {
		env := setup(t)
		rec := env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "like"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeBody[SwipeResponse](t, rec).Matched)

		rec = env.do(http.MethodPost, "/swipes", "bob", SwipeRequest{TargetID: "alice", Decision: "LIKE"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[SwipeResponse](t, rec)
		assert.True(t, resp.Matched)
		require.NotNil(t, resp.Match)
		assert.Equal(t, resp.Match.ID, resp.MatchID)
		assert.True(t, resp.Match.Active)
		assert.Len(t, env.store.Matches(), 1)
	})

	t.Run("RepeatedLikeReturnsSameMatch", func(t *testing.T) {
		env := setup(t)
		env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "like"})
		first := decodeBody[SwipeResponse](t, env.do(http.MethodPost, "/swipes", "bob", SwipeRequest{TargetID: "alice", Decision: "like"}))
		again := decodeBody[SwipeResponse](t, env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "like"}))
		assert.True(t, again.Matched)
		assert.Equal(t, first.MatchID, again.MatchID)
		assert.Len(t, env.store.Matches(), 1)
	})

	t.Run("Pass", func(t *testing.T) {
		env := setup(t)
		env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "like"})
		rec := env.do(http.MethodPost, "/swipes", "bob", SwipeRequest{TargetID: "alice", Decision: "pass"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeBody[SwipeResponse](t, rec).Matched)
		assert.Empty(t, env.store.Matches())
	})

	t.Run("MixedCaseDecision", func(t *testing.T) {
		env := setup(t)
		rec := env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "bob", Decision: "Like"})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(http.MethodPost, "/swipes", "bob", SwipeRequest{TargetID: "alice", Decision: " pass "})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, env.store.Interactions(), 2)
		assert.Equal(t, match.KindLike, env.store.Interactions()[0].Kind)
		assert.Equal(t, match.KindPass, env.store.Interactions()[1].Kind)
	})

	t.Run("BadRequests", func(t *testing.T) {
		env := setup(t)
		cases := []struct {
			name string
			body any
			want string
		}{
			{"MalformedJSON", `{"target_id":`, "invalid_json"},
			{"UnknownField", `{"target_id":"bob","decision":"like","extra":1}`, "invalid_json"},
			{"MissingDecision", SwipeRequest{TargetID: "bob"}, "missing_fields"},
			{"MissingTarget", SwipeRequest{Decision: "like"}, "missing_fields"},
			{"UnknownDecision", SwipeRequest{TargetID: "bob", Decision: "superlike"}, "invalid_decision"},
			{"Self", SwipeRequest{TargetID: "alice", Decision: "like"}, "invalid_target"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := env.do(http.MethodPost, "/swipes", "alice", tc.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.JSONEq(t, `{"error":"`+tc.want+`"}`, rec.Body.String())
			})
		}
		assert.Empty(t, env.store.Interactions())
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		env := setup(t)
		rec := env.do(http.MethodPost, "/swipes", "alice", SwipeRequest{TargetID: "ghost", Decision: "like"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, env.store.Interactions())
	})
}

// ============================================================================
// MATCHES
// ============================================================================

func TestMatchesSuite(t *testing.T) {
	setup := func(t *testing.T) *testEnv {
		env := newTestEnv(t)
		env.addUser("alice", match.GenderFemale, match.TierBasic, match.GenderMale)
		env.addUser("bob", match.GenderMale, match.TierBasic, match.GenderFemale)
		env.addUser("carl", match.GenderMale, match.TierBasic, match.GenderFemale)
		ctx := context.Background()
		for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"alice", "carl"}, {"carl", "alice"}} {
			_, err := env.srv.engine.RecordAction(ctx, pair[0], pair[1], match.KindLike)
			require.NoError(t, err)
		}
		return env
	}

	matchPeers := func(t *testing.T, env *testEnv, user string) []string {
		rec := env.do(http.MethodGet, "/matches", user, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeBody[map[string][]MatchResponse](t, rec)["matches"]
		out := make([]string, len(list))
		for i, m := range list {
			out[i] = m.Peer.ID
			assert.NotEmpty(t, m.ID)
			assert.False(t, m.Online)
		}
		return out
	}

	t.Run("NewestFirstWithPeers", func(t *testing.T) {
		env := setup(t)
		assert.Equal(t, []string{"carl", "bob"}, matchPeers(t, env, "alice"))
		assert.Equal(t, []string{"alice"}, matchPeers(t, env, "bob"))
	})

	t.Run("Empty", func(t *testing.T) {
		env := setup(t)
		env.addUser("dan", match.GenderMale, match.TierBasic)
		rec := env.do(http.MethodGet, "/matches", "dan", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
	})

	t.Run("Unmatch", func(t *testing.T) {
		env := setup(t)
		rec := env.do(http.MethodDelete, "/matches/bob", "alice", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"carl"}, matchPeers(t, env, "alice"))
		assert.Empty(t, matchPeers(t, env, "bob"))

		// Repeating is harmless.
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/matches/bob", "alice", nil).Code)
		// Either side can unmatch.
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/matches/alice", "carl", nil).Code)
		assert.Empty(t, matchPeers(t, env, "alice"))
	})

	t.Run("UnmatchNeverMatched", func(t *testing.T) {
		env := setup(t)
		rec := env.do(http.MethodDelete, "/matches/carl", "bob", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("RematchAfterUnmatch", func(t *testing.T) {
		env := setup(t)
		require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/matches/bob", "alice", nil).Code)
		resp := decodeBody[SwipeResponse](t, env.do(http.MethodPost, "/swipes", "bob", SwipeRequest{TargetID: "alice", Decision: "like"}))
		assert.True(t, resp.Matched)
		assert.Equal(t, []string{"bob", "carl"}, matchPeers(t, env, "alice"))
	})

}

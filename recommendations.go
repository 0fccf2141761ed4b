package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arnnvv/peeple/match"
)

type feedQuery struct {
	Limit  int `validate:"gte=0"`
	Offset int `validate:"gte=0"`
}

func parseFeedQuery(r *http.Request) (feedQuery, bool) {
	var q feedQuery
	var err error
	if v := r.URL.Query().Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, false
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			return q, false
		}
	}
	return q, validate.Struct(q) == nil
}

// GET /feed?limit=&offset=
// Returns the next page of swipe candidates. Users who already liked the
// caller come first; premium callers also see who they are.
func feedHandler(engine *match.Engine, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := currentUserID(r)
		q, ok := parseFeedQuery(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_paging")
			return
		}

		requester, err := engine.Store().GetProfile(r.Context(), me)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		page, err := engine.Feed(r.Context(), me, match.Page{Limit: q.Limit, Offset: q.Offset})
		if err != nil {
			writeEngineError(w, r, err)
			return
		}

		premium := requester.Tier == match.TierPremium
		now := time.Now()
		resp := FeedResponse{Candidates: make([]FeedCandidate, 0, len(page.Candidates)), HasMore: page.HasMore}
		for _, c := range page.Candidates {
			fc := FeedCandidate{PublicProfile: toPublicProfile(c.Profile, now)}
			if premium {
				liked := c.LikedYou
				fc.LikedYou = &liked
			}
			resp.Candidates = append(resp.Candidates, fc)
		}
		metrics.feedServed(len(resp.Candidates))
		writeJSON(w, http.StatusOK, resp)
	}
}

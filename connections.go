package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arnnvv/peeple/logging"
	"github.com/arnnvv/peeple/match"
)

// POST /swipes
// Records a like or pass. A like that completes a mutual pair answers with the match.
func swipeHandler(engine *match.Engine, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SwipeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		kind, err := match.ParseKind(req.Decision)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_decision")
			return
		}

		me := currentUserID(r)
		if req.TargetID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		res, err := engine.RecordAction(r.Context(), me, req.TargetID, kind)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		metrics.swipeRecorded(kind)

		resp := SwipeResponse{Matched: res.Matched}
		if res.Matched {
			resp.MatchID = res.Match.ID
			resp.Match = res.Match
			logging.Ctx(r.Context()).Info().
				Str("match_id", res.Match.ID).
				Str("peer_id", req.TargetID).
				Bool("created", res.Created).
				Msg("mutual like")
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /matches
// Lists active matches, newest first, with peer profiles batched through the loader.
func matchesHandler(engine *match.Engine, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := currentUserID(r)
		ms, err := engine.Matches(r.Context(), me)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}

		loaders := GetDataLoadersFromContext(r.Context())
		if loaders == nil {
			loaders = NewDataLoaders(engine.Store())
		}
		peerIDs := make([]string, len(ms))
		for i, m := range ms {
			peerIDs[i] = m.Peer(me)
		}
		peers, errs := loaders.ProfileLoader.LoadMany(r.Context(), peerIDs)()

		now := time.Now()
		out := make([]MatchResponse, 0, len(ms))
		for i, m := range ms {
			if len(errs) > i && errs[i] != nil {
				// Peer deleted since the match; skip rather than fail the list.
				logging.Ctx(r.Context()).Warn().Err(errs[i]).Str("peer_id", peerIDs[i]).Msg("match peer not loaded")
				continue
			}
			out = append(out, MatchResponse{
				ID:        m.ID,
				Peer:      toPublicProfile(peers[i], now),
				MatchedAt: m.MatchedAt,
				Online:    hub.isOnline(peerIDs[i]),
			})
		}
		writeJSON(w, http.StatusOK, map[string][]MatchResponse{"matches": out})
	}
}

// DELETE /matches/{peerID}
// Unmatches. Repeating it is harmless; unmatching someone you never matched is 404.
func unmatchHandler(engine *match.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peerID := chi.URLParam(r, "peerID")
		if err := engine.Unmatch(r.Context(), currentUserID(r), peerID); err != nil {
			writeEngineError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arnnvv/peeple/match"
)

// GET /me
func meHandler(dir match.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := dir.GetProfile(r.Context(), currentUserID(r))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		resp := MeResponse{
			PublicProfile: toPublicProfile(p, time.Now()),
			Preference:    p.Preference,
			Tier:          p.Tier,
		}
		if resp.Preference.Genders == nil {
			resp.Preference.Genders = []match.Gender{}
		}
		if p.BirthDate.Known() {
			bd := p.BirthDate
			resp.BirthDate = &bd
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /users/{id}
func userHandler(dir match.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := dir.GetProfile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPublicProfile(p, time.Now()))
	}
}

package main

import (
	"time"

	"github.com/arnnvv/peeple/match"
)

// PublicProfile is what one user may see about another.
type PublicProfile struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Gender match.Gender `json:"gender"`
	Age    *int         `json:"age,omitempty"`
}

func toPublicProfile(p *match.Profile, now time.Time) PublicProfile {
	out := PublicProfile{ID: p.ID, Name: p.Name, Gender: p.Gender}
	if age := p.BirthDate.Age(now); age >= 0 {
		out.Age = &age
	}
	return out
}

// MeResponse is the caller's own profile including preferences.
type MeResponse struct {
	PublicProfile
	Preference match.Preference `json:"preference"`
	BirthDate  *match.BirthDate `json:"birth_date,omitempty"`
	Tier       match.Tier       `json:"tier"`
}

// FeedCandidate is one card in the swipe deck. LikedYou is only revealed to premium users.
type FeedCandidate struct {
	PublicProfile
	LikedYou *bool `json:"liked_you,omitempty"`
}

type FeedResponse struct {
	Candidates []FeedCandidate `json:"candidates"`
	HasMore    bool            `json:"has_more"`
}

// SwipeRequest is the body of POST /swipes.
type SwipeRequest struct {
	TargetID string `json:"target_id" validate:"required,max=128"`
	Decision string `json:"decision" validate:"required"`
}

type SwipeResponse struct {
	Matched bool         `json:"matched"`
	MatchID string       `json:"match_id,omitempty"`
	Match   *match.Match `json:"match,omitempty"`
}

// MatchResponse is one entry of the caller's match list.
type MatchResponse struct {
	ID        string        `json:"id"`
	Peer      PublicProfile `json:"peer"`
	MatchedAt time.Time     `json:"matched_at"`
	Online    bool          `json:"online"`
}

// ServerEvent is pushed to websocket clients.
type ServerEvent struct {
	Type string `json:"type"` // "match" | "info"
	Data any    `json:"data,omitempty"`
}

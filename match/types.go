// Package match selects swipe candidates for a user and turns mutual likes
// into matches.
package match

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Gender of a user profile
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// AllGenders in a stable order
var AllGenders = []Gender{GenderFemale, GenderMale, GenderOther}

// ParseGender accepts the wire form of a gender, case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown gender %q", ErrInvalidArgument, s)
}

// Tier is the subscription plan of a user
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// BirthDate is stored as separate day/month/year columns. The zero value means unknown.
type BirthDate struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Known reports whether all three parts are set.
func (b BirthDate) Known() bool {
	return b.Day > 0 && b.Month > 0 && b.Year > 0
}

// Age returns completed years at now, or -1 when the date is unknown.
func (b BirthDate) Age(now time.Time) int {
	if !b.Known() {
		return -1
	}
	age := now.Year() - b.Year
	if int(now.Month()) < b.Month || (int(now.Month()) == b.Month && now.Day() < b.Day) {
		age--
	}
	return age
}

// Preference describes who a user wants to see.
// An empty Genders slice means the user never set it. Zero age bounds are unbounded.
type Preference struct {
	Genders []Gender `json:"genders"`
	MinAge  int      `json:"min_age,omitempty"`
	MaxAge  int      `json:"max_age,omitempty"`
}

// Profile is the read-only view of a user that the engine works with.
type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Gender     Gender     `json:"gender"`
	Preference Preference `json:"preference"`
	BirthDate  BirthDate  `json:"birth_date"`
	Tier       Tier       `json:"tier"`
}

// AcceptedGenders resolves the gender filter for p.
// Legacy rows without a preference fall back to the opposite gender;
// "other" has no opposite and sees everyone.
func (p *Profile) AcceptedGenders() []Gender {
	if len(p.Preference.Genders) > 0 {
		out := append([]Gender(nil), p.Preference.Genders...)
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	switch p.Gender {
	case GenderMale:
		return []Gender{GenderFemale}
	case GenderFemale:
		return []Gender{GenderMale}
	default:
		return append([]Gender(nil), AllGenders...)
	}
}

// acceptsAge applies the optional age bounds of p to a candidate.
func (p *Profile) acceptsAge(c *Profile, now time.Time) bool {
	if p.Preference.MinAge <= 0 && p.Preference.MaxAge <= 0 {
		return true
	}
	age := c.BirthDate.Age(now)
	if age < 0 {
		return false
	}
	if p.Preference.MinAge > 0 && age < p.Preference.MinAge {
		return false
	}
	if p.Preference.MaxAge > 0 && age > p.Preference.MaxAge {
		return false
	}
	return true
}

// Kind of swipe decision
type Kind string

const (
	KindLike Kind = "LIKE"
	KindPass Kind = "PASS"
)

// ParseKind accepts "like"/"pass" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindLike, KindPass:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidArgument, s)
}

// Interaction is one append-only ledger entry: actor swiped on target.
type Interaction struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a confirmed mutual like. UserAID is always the lexicographically smaller id.
type Match struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	MatchedAt time.Time `json:"matched_at"`
	Active    bool      `json:"active"`
}

// Peer returns the other side of the match for userID.
func (m *Match) Peer(userID string) string {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

// Involves reports whether userID is one of the two matched users.
func (m *Match) Involves(userID string) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// OrderedPair returns (min, max) of two ids.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// PairKey is a stable key for an unordered pair of users.
func PairKey(a, b string) string {
	lo, hi := OrderedPair(a, b)
	return lo + "|" + hi
}

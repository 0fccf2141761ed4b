// Package seed generates deterministic demo users and swipes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/arnnvv/peeple/match"
)

// ProfileWriter is implemented by both stores.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, p *match.Profile) error
}

// Options control the generated data.
type Options struct {
	Count       int
	Seed        int64
	LikeRate    float64 // chance of liking each compatible user
	PassRate    float64 // chance of passing on each compatible user
	PremiumRate float64
	// Now anchors birth dates; zero means time.Now.
	Now time.Time
}

// DefaultOptions mirrors the db-seeder flag defaults.
func DefaultOptions() Options {
	return Options{Count: 300, Seed: 42, LikeRate: 0.15, PassRate: 0.10, PremiumRate: 0.2}
}

// Validate checks the counts and rates.
func (o Options) Validate() error {
	if o.Count < 2 {
		return errors.New("count must be at least 2")
	}
	for name, r := range map[string]float64{"like rate": o.LikeRate, "pass rate": o.PassRate, "premium rate": o.PremiumRate} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be in range 0..1", name)
		}
	}
	if o.LikeRate+o.PassRate > 1 {
		return errors.New("like rate + pass rate must not exceed 1")
	}
	return nil
}

// Stats summarises a run.
type Stats struct {
	Users   int
	Likes   int
	Passes  int
	Matches int
}

var namespace = uuid.MustParse("6f1c0a4e-2b7d-4c55-9a53-5d0b1e7f9c21")

// UserID returns the deterministic id of the i-th seeded user.
func UserID(seed int64, i int) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%d/%d", seed, i))).String()
}

var (
	firstNames = []string{"Alex", "Sam", "Mia", "Li", "Noah", "Olivia", "Leo", "Emil", "Sara", "Luca", "Milla", "Mikko", "Eeva", "Niklas", "Sofia"}
	lastNames  = []string{"Korhonen", "Virtanen", "Nieminen", "Laine", "Heikkinen", "Koski", "Maki", "Aho", "Salmi", "Rantanen"}
)

// Profiles generates o.Count profiles. The first two are fixed test users
// who want each other.
func Profiles(o Options) []*match.Profile {
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	r := rand.New(rand.NewSource(o.Seed))
	out := make([]*match.Profile, 0, o.Count)
	for i := 0; i < o.Count; i++ {
		p := &match.Profile{ID: UserID(o.Seed, i), Tier: match.TierBasic}
		switch i {
		case 0:
			p.Name, p.Gender = "Test User One", match.GenderFemale
			p.Preference.Genders = []match.Gender{match.GenderMale}
			p.BirthDate = match.BirthDate{Day: 14, Month: 2, Year: now.Year() - 28}
			p.Tier = match.TierPremium
		case 1:
			p.Name, p.Gender = "Test User Two", match.GenderMale
			p.Preference.Genders = []match.Gender{match.GenderFemale}
			p.BirthDate = match.BirthDate{Day: 3, Month: 9, Year: now.Year() - 30}
		default:
			p.Name = firstNames[r.Intn(len(firstNames))] + " " + lastNames[r.Intn(len(lastNames))]
			p.Gender = randomGender(r)
			p.Preference.Genders = randomPreference(r, p.Gender)
			if r.Float64() < 0.9 {
				p.BirthDate = match.BirthDate{Day: 1 + r.Intn(28), Month: 1 + r.Intn(12), Year: now.Year() - 18 - r.Intn(30)}
			}
			if r.Float64() < 0.25 {
				p.Preference.MinAge = 18 + r.Intn(10)
				p.Preference.MaxAge = p.Preference.MinAge + 5 + r.Intn(20)
			}
			if r.Float64() < o.PremiumRate {
				p.Tier = match.TierPremium
			}
		}
		out = append(out, p)
	}
	return out
}

func randomGender(r *rand.Rand) match.Gender {
	switch x := r.Float64(); {
	case x < 0.47:
		return match.GenderFemale
	case x < 0.94:
		return match.GenderMale
	default:
		return match.GenderOther
	}
}

// randomPreference leaves some users unset so the legacy fallback is exercised.
func randomPreference(r *rand.Rand, g match.Gender) []match.Gender {
	switch x := r.Float64(); {
	case x < 0.15:
		return nil
	case x < 0.30:
		return []match.Gender{match.GenderFemale, match.GenderMale, match.GenderOther}
	case x < 0.40:
		return []match.Gender{g}
	default:
		if g == match.GenderFemale {
			return []match.Gender{match.GenderMale}
		}
		return []match.Gender{match.GenderFemale}
	}
}

// Run writes the profiles and replays a random swipe graph through the engine,
// so mutual likes become matches the same way they do in production.
func Run(ctx context.Context, w ProfileWriter, e *match.Engine, o Options) (Stats, error) {
	if err := o.Validate(); err != nil {
		return Stats{}, err
	}
	profiles := Profiles(o)
	for _, p := range profiles {
		if err := w.UpsertProfile(ctx, p); err != nil {
			return Stats{}, fmt.Errorf("write profile %s: %w", p.ID, err)
		}
	}
	st := Stats{Users: len(profiles)}

	record := func(actor, target string, kind match.Kind) error {
		res, err := e.RecordAction(ctx, actor, target, kind)
		if err != nil {
			return fmt.Errorf("swipe %s -> %s: %w", actor, target, err)
		}
		if kind == match.KindLike {
			st.Likes++
		} else {
			st.Passes++
		}
		if res.Created {
			st.Matches++
		}
		return nil
	}

	// The two test users start out matched.
	if err := record(profiles[0].ID, profiles[1].ID, match.KindLike); err != nil {
		return st, err
	}
	if err := record(profiles[1].ID, profiles[0].ID, match.KindLike); err != nil {
		return st, err
	}

	r := rand.New(rand.NewSource(o.Seed + 1))
	for _, actor := range profiles[2:] {
		accepted := map[match.Gender]bool{}
		for _, g := range actor.AcceptedGenders() {
			accepted[g] = true
		}
		for _, target := range profiles {
			if target.ID == actor.ID || !accepted[target.Gender] {
				continue
			}
			x := r.Float64()
			switch {
			case x < o.LikeRate:
				if err := record(actor.ID, target.ID, match.KindLike); err != nil {
					return st, err
				}
			case x < o.LikeRate+o.PassRate:
				if err := record(actor.ID, target.ID, match.KindPass); err != nil {
					return st, err
				}
			}
		}
	}
	return st, nil
}

// Package memstore keeps profiles, the swipe ledger and matches in process
// memory. It backs the handler tests and the "memory" store driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/arnnvv/peeple/match"
)

// Store implements match.Store. Writes are staged per Atomic call and applied
// under the store lock when the callback returns nil.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*match.Profile
	ledger   []*match.Interaction
	// Latest record per (actor, target), indexed from both ends.
	byActor  map[string]map[string]*match.Interaction
	byTarget map[string]map[string]*match.Interaction
	matches  []*match.Match

	locksMu sync.Mutex
	locks   map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles: make(map[string]*match.Profile),
		byActor:  make(map[string]map[string]*match.Interaction),
		byTarget: make(map[string]map[string]*match.Interaction),
		locks:    make(map[string]*pairLock),
	}
}

var _ match.Store = (*Store)(nil)

// UpsertProfile inserts or replaces a profile.
func (s *Store) UpsertProfile(_ context.Context, p *match.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile without id", match.ErrInvalidArgument)
	}
	cp := *p
	cp.Preference.Genders = append([]match.Gender(nil), p.Preference.Genders...)
	s.mu.Lock()
	s.profiles[p.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*match.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, match.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetProfiles(_ context.Context, ids []string) (map[string]*match.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*match.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) ListByGender(_ context.Context, genders []match.Gender) ([]*match.Profile, error) {
	want := make(map[match.Gender]bool, len(genders))
	for _, g := range genders {
		want[g] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*match.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if want[p.Gender] {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LatestInteraction(_ context.Context, actorID, targetID string) (*match.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyInteraction(s.byActor[actorID][targetID]), nil
}

func (s *Store) ActiveInteractionsByActor(_ context.Context, actorID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	heads := s.byActor[actorID]
	out := make(map[string]struct{}, len(heads))
	for target := range heads {
		out[target] = struct{}{}
	}
	return out, nil
}

func (s *Store) InboundLikes(_ context.Context, targetID string) ([]*match.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*match.Interaction
	for _, rec := range s.byTarget[targetID] {
		if rec.Kind == match.KindLike {
			out = append(out, copyInteraction(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ActorID < out[j].ActorID
	})
	return out, nil
}

func (s *Store) FindActiveMatch(_ context.Context, a, b string) (*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMatch(s.activeMatch(a, b)), nil
}

func (s *Store) ListActiveMatches(_ context.Context, userID string) ([]*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*match.Match
	for _, m := range s.matches {
		if m.Active && m.Involves(userID) {
			out = append(out, copyMatch(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchedAt.After(out[j].MatchedAt) })
	return out, nil
}

// Interactions returns the whole ledger in append order.
func (s *Store) Interactions() []*match.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*match.Interaction, len(s.ledger))
	for i, rec := range s.ledger {
		out[i] = copyInteraction(rec)
	}
	return out
}

// Matches returns every match row, inactive ones included.
func (s *Store) Matches() []*match.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*match.Match, len(s.matches))
	for i, m := range s.matches {
		out[i] = copyMatch(m)
	}
	return out
}

// Atomic serialises fn against every other Atomic call on the same pair.
func (s *Store) Atomic(ctx context.Context, a, b string, fn func(tx match.Tx) error) error {
	key := match.PairKey(a, b)
	l := s.acquire(key)
	defer s.release(key, l)

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) acquire(key string) *pairLock {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &pairLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()
	l.mu.Lock()
	return l
}

func (s *Store) release(key string, l *pairLock) {
	l.mu.Unlock()
	s.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.locksMu.Unlock()
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range t.appended {
		s.ledger = append(s.ledger, rec)
		index(s.byActor, rec.ActorID, rec.TargetID, rec)
		index(s.byTarget, rec.TargetID, rec.ActorID, rec)
	}
	for _, m := range t.deactivated {
		m.Active = false
	}
	s.matches = append(s.matches, t.created...)
}

func index(m map[string]map[string]*match.Interaction, outer, inner string, rec *match.Interaction) {
	row, ok := m[outer]
	if !ok {
		row = make(map[string]*match.Interaction)
		m[outer] = row
	}
	row[inner] = rec
}

// activeMatch must be called with s.mu held.
func (s *Store) activeMatch(a, b string) *match.Match {
	lo, hi := match.OrderedPair(a, b)
	for _, m := range s.matches {
		if m.Active && m.UserAID == lo && m.UserBID == hi {
			return m
		}
	}
	return nil
}

// tx stages writes until Atomic commits them.
type tx struct {
	s           *Store
	appended    []*match.Interaction
	created     []*match.Match
	deactivated []*match.Match
}

func (t *tx) AppendInteraction(_ context.Context, rec *match.Interaction) error {
	if rec.ActorID == rec.TargetID {
		return fmt.Errorf("%w: self interaction", match.ErrInvalidArgument)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cp := *rec
	t.appended = append(t.appended, &cp)
	return nil
}

func (t *tx) LatestInteraction(ctx context.Context, actorID, targetID string) (*match.Interaction, error) {
	for i := len(t.appended) - 1; i >= 0; i-- {
		if rec := t.appended[i]; rec.ActorID == actorID && rec.TargetID == targetID {
			return copyInteraction(rec), nil
		}
	}
	return t.s.LatestInteraction(ctx, actorID, targetID)
}

func (t *tx) FindActiveMatch(_ context.Context, a, b string) (*match.Match, error) {
	lo, hi := match.OrderedPair(a, b)
	for _, m := range t.created {
		if m.UserAID == lo && m.UserBID == hi {
			return copyMatch(m), nil
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	m := t.s.activeMatch(a, b)
	if m == nil || t.isDeactivated(m) {
		return nil, nil
	}
	return copyMatch(m), nil
}

func (t *tx) CreateMatch(ctx context.Context, m *match.Match) error {
	if m.UserAID == m.UserBID {
		return fmt.Errorf("%w: self match", match.ErrInvalidArgument)
	}
	existing, err := t.FindActiveMatch(ctx, m.UserAID, m.UserBID)
	if err != nil {
		return err
	}
	if existing != nil {
		return match.ErrMatchExists
	}
	m.UserAID, m.UserBID = match.OrderedPair(m.UserAID, m.UserBID)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Active = true
	cp := *m
	t.created = append(t.created, &cp)
	return nil
}

func (t *tx) DeactivateMatch(_ context.Context, a, b string) (*match.Match, error) {
	lo, hi := match.OrderedPair(a, b)
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var last *match.Match
	for _, m := range t.s.matches {
		if m.UserAID != lo || m.UserBID != hi {
			continue
		}
		if last == nil || !m.MatchedAt.Before(last.MatchedAt) {
			last = m
		}
		if m.Active && !t.isDeactivated(m) {
			t.deactivated = append(t.deactivated, m)
		}
	}
	if last == nil {
		return nil, nil
	}
	out := copyMatch(last)
	out.Active = false
	return out, nil
}

func (t *tx) isDeactivated(m *match.Match) bool {
	for _, d := range t.deactivated {
		if d == m {
			return true
		}
	}
	return false
}

func copyInteraction(rec *match.Interaction) *match.Interaction {
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}

func copyMatch(m *match.Match) *match.Match {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

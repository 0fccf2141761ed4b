package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Notifier is told about matches right after they are committed.
type Notifier interface {
	MatchCreated(ctx context.Context, m *Match)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNotifier registers a listener for new matches.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPageSizes overrides the feed page size defaults.
func WithPageSizes(def, max int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultPage = def
		}
		if max > 0 {
			e.maxPage = max
		}
	}
}

// Engine is the recommendation and match engine. It is safe for concurrent use;
// all shared state lives in the Store.
type Engine struct {
	store       Store
	notifier    Notifier
	now         func() time.Time
	defaultPage int
	maxPage     int
}

// NewEngine builds an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		now:         time.Now,
		defaultPage: DefaultPageSize,
		maxPage:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying store for read-only lookups by the HTTP layer.
func (e *Engine) Store() Store { return e.store }

// requester loads a profile that is allowed to ask for a feed.
func (e *Engine) requester(ctx context.Context, id string) (*Profile, error) {
	p, err := e.store.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load requester %q: %w", id, err)
	}
	if p.Gender == "" {
		return nil, fmt.Errorf("requester %q has no gender: %w", id, ErrNotFound)
	}
	return p, nil
}

// SelectCandidates returns the ordered candidate list for requesterID.
//
// Users who already liked the requester come first, most recent like first.
// Everyone else follows by ascending id. Users the requester already swiped on
// and the requester themself never appear.
func (e *Engine) SelectCandidates(ctx context.Context, requesterID string) ([]*Profile, error) {
	scored, err := e.selectCandidates(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	out := make([]*Profile, len(scored))
	for i, c := range scored {
		out[i] = c.Profile
	}
	return out, nil
}

// Candidate is one feed entry together with the signal that ordered it.
type Candidate struct {
	*Profile
	LikedYou bool
	likedAt  time.Time
}

func (e *Engine) selectCandidates(ctx context.Context, requesterID string) ([]Candidate, error) {
	me, err := e.requester(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	pool, err := e.store.ListByGender(ctx, me.AcceptedGenders())
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	seen, err := e.store.ActiveInteractionsByActor(ctx, me.ID)
	if err != nil {
		return nil, fmt.Errorf("load swipes of %q: %w", me.ID, err)
	}
	inbound, err := e.store.InboundLikes(ctx, me.ID)
	if err != nil {
		return nil, fmt.Errorf("load likes for %q: %w", me.ID, err)
	}
	likedAt := make(map[string]time.Time, len(inbound))
	for _, rec := range inbound {
		likedAt[rec.ActorID] = rec.CreatedAt
	}

	now := e.now()
	out := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if p.ID == me.ID {
			continue
		}
		if _, done := seen[p.ID]; done {
			continue
		}
		if !me.acceptsAge(p, now) {
			continue
		}
		c := Candidate{Profile: p}
		if at, ok := likedAt[p.ID]; ok {
			c.LikedYou = true
			c.likedAt = at
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LikedYou != b.LikedYou {
			return a.LikedYou
		}
		if a.LikedYou && !a.likedAt.Equal(b.likedAt) {
			return a.likedAt.After(b.likedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Page selects a window of the feed.
type Page struct {
	Limit  int
	Offset int
}

// FeedPage is one window of the ordered candidate list.
type FeedPage struct {
	Candidates []Candidate
	HasMore    bool
}

// Feed returns one page of SelectCandidates for requesterID.
func (e *Engine) Feed(ctx context.Context, requesterID string, page Page) (*FeedPage, error) {
	all, err := e.selectCandidates(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = e.defaultPage
	}
	if limit > e.maxPage {
		limit = e.maxPage
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return &FeedPage{Candidates: []Candidate{}}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return &FeedPage{Candidates: all[offset:end], HasMore: end < len(all)}, nil
}

// ActionResult is the outcome of a swipe.
type ActionResult struct {
	Matched bool
	Match   *Match
	// Created is true only for the call that inserted the match.
	Created bool
}

// RecordAction appends a swipe and, for a LIKE that completes a mutual pair,
// returns the pair's active match, creating it if needed.
func (e *Engine) RecordAction(ctx context.Context, actorID, targetID string, kind Kind) (*ActionResult, error) {
	if actorID == targetID {
		return nil, fmt.Errorf("%w: cannot swipe on yourself", ErrInvalidArgument)
	}
	if kind != KindLike && kind != KindPass {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidArgument, kind)
	}
	for _, id := range []string{actorID, targetID} {
		if _, err := e.store.GetProfile(ctx, id); err != nil {
			return nil, fmt.Errorf("load user %q: %w", id, err)
		}
	}

	res, err := e.recordAction(ctx, actorID, targetID, kind)
	if errors.Is(err, ErrConflict) {
		res, err = e.recordAction(ctx, actorID, targetID, kind)
	}
	if err != nil {
		return nil, err
	}
	if res.Created && e.notifier != nil {
		e.notifier.MatchCreated(ctx, res.Match)
	}
	return res, nil
}

func (e *Engine) recordAction(ctx context.Context, actorID, targetID string, kind Kind) (*ActionResult, error) {
	res := &ActionResult{}
	err := e.store.Atomic(ctx, actorID, targetID, func(tx Tx) error {
		*res = ActionResult{}
		now := e.now()
		rec := &Interaction{ActorID: actorID, TargetID: targetID, Kind: kind, CreatedAt: now}
		if err := tx.AppendInteraction(ctx, rec); err != nil {
			return fmt.Errorf("append interaction: %w", err)
		}
		if kind != KindLike {
			return nil
		}

		back, err := tx.LatestInteraction(ctx, targetID, actorID)
		if err != nil {
			return fmt.Errorf("load reciprocal swipe: %w", err)
		}
		if back == nil || back.Kind != KindLike {
			return nil
		}

		existing, err := tx.FindActiveMatch(ctx, actorID, targetID)
		if err != nil {
			return fmt.Errorf("find match: %w", err)
		}
		if existing != nil {
			res.Matched, res.Match = true, existing
			return nil
		}

		a, b := OrderedPair(actorID, targetID)
		m := &Match{UserAID: a, UserBID: b, MatchedAt: now, Active: true}
		err = tx.CreateMatch(ctx, m)
		switch {
		case errors.Is(err, ErrMatchExists):
			existing, err = tx.FindActiveMatch(ctx, actorID, targetID)
			if err != nil {
				return fmt.Errorf("find match: %w", err)
			}
			if existing == nil {
				return fmt.Errorf("match for %s vanished: %w", PairKey(a, b), ErrConflict)
			}
			res.Matched, res.Match = true, existing
		case err != nil:
			return fmt.Errorf("create match: %w", err)
		default:
			res.Matched, res.Match, res.Created = true, m, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Matches lists the active matches of userID, newest first.
func (e *Engine) Matches(ctx context.Context, userID string) ([]*Match, error) {
	if _, err := e.store.GetProfile(ctx, userID); err != nil {
		return nil, fmt.Errorf("load user %q: %w", userID, err)
	}
	ms, err := e.store.ListActiveMatches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return ms, nil
}

// Unmatch deactivates the active match between userID and peerID. Calling it
// again is a no-op. It returns ErrNotFound when the two never matched.
func (e *Engine) Unmatch(ctx context.Context, userID, peerID string) error {
	if userID == peerID {
		return fmt.Errorf("%w: cannot unmatch yourself", ErrInvalidArgument)
	}
	var last *Match
	err := e.store.Atomic(ctx, userID, peerID, func(tx Tx) error {
		m, err := tx.DeactivateMatch(ctx, userID, peerID)
		if err != nil {
			return fmt.Errorf("deactivate match: %w", err)
		}
		last = m
		return nil
	})
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("no match between %q and %q: %w", userID, peerID, ErrNotFound)
	}
	return nil
}

// Package pgstore is the PostgreSQL implementation of match.Store.
//
// Pair-level atomicity comes from a transaction-scoped advisory lock on the
// unordered pair key; the partial unique index on active matches backs it up.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/arnnvv/peeple/logging"
	"github.com/arnnvv/peeple/match"
)

// DefaultMaxRetries bounds how often Atomic re-runs a transaction that failed
// with a serialization failure, deadlock or dropped connection.
const DefaultMaxRetries = 3

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements match.Store on top of database/sql and lib/pq.
type Store struct {
	db         *sql.DB
	maxRetries uint64
	log        zerolog.Logger
}

var _ match.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, maxRetries: DefaultMaxRetries, log: logging.WithComponent("pgstore")}
}

// Open connects to databaseURL and waits for the server to answer a ping.
func Open(ctx context.Context, databaseURL string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logging.Warn().Err(err).Dur("retry_in", wait).Msg("database not reachable yet")
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const profileColumns = `id, name, gender, preferred_genders, min_age, max_age,
	birth_day, birth_month, birth_year, tier`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*match.Profile, error) {
	var (
		p       match.Profile
		genders []string
		d, m, y sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Gender, pq.Array(&genders),
		&p.Preference.MinAge, &p.Preference.MaxAge, &d, &m, &y, &p.Tier); err != nil {
		return nil, err
	}
	for _, g := range genders {
		p.Preference.Genders = append(p.Preference.Genders, match.Gender(g))
	}
	p.BirthDate = match.BirthDate{Day: int(d.Int64), Month: int(m.Int64), Year: int(y.Int64)}
	return &p, nil
}

// UpsertProfile inserts or replaces a user row.
func (s *Store) UpsertProfile(ctx context.Context, p *match.Profile) error {
	genders := make([]string, len(p.Preference.Genders))
	for i, g := range p.Preference.Genders {
		genders[i] = string(g)
	}
	tier := p.Tier
	if tier == "" {
		tier = match.TierBasic
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, gender, preferred_genders, min_age, max_age,
			birth_day, birth_month, birth_year, tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			preferred_genders = EXCLUDED.preferred_genders,
			min_age = EXCLUDED.min_age,
			max_age = EXCLUDED.max_age,
			birth_day = EXCLUDED.birth_day,
			birth_month = EXCLUDED.birth_month,
			birth_year = EXCLUDED.birth_year,
			tier = EXCLUDED.tier
	`, p.ID, p.Name, string(p.Gender), pq.Array(genders), p.Preference.MinAge, p.Preference.MaxAge,
		nullInt(p.BirthDate.Day), nullInt(p.BirthDate.Month), nullInt(p.BirthDate.Year), string(tier))
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", p.ID, err)
	}
	return nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v > 0}
}

func (s *Store) GetProfile(ctx context.Context, id string) (*match.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", id, match.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", id, err)
	}
	return p, nil
}

func (s *Store) GetProfiles(ctx context.Context, ids []string) (map[string]*match.Profile, error) {
	out := make(map[string]*match.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Store) ListByGender(ctx context.Context, genders []match.Gender) ([]*match.Profile, error) {
	gs := make([]string, len(genders))
	for i, g := range genders {
		gs[i] = string(g)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE gender = ANY($1) ORDER BY id COLLATE "C"`, pq.Array(gs))
	if err != nil {
		return nil, fmt.Errorf("list by gender: %w", err)
	}
	defer rows.Close()
	var out []*match.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) LatestInteraction(ctx context.Context, actorID, targetID string) (*match.Interaction, error) {
	return latestInteraction(ctx, s.db, actorID, targetID)
}

func latestInteraction(ctx context.Context, q querier, actorID, targetID string) (*match.Interaction, error) {
	var rec match.Interaction
	err := q.QueryRowContext(ctx, `
		SELECT interaction_id, actor_id, target_id, kind, created_at
		FROM interaction_heads
		WHERE actor_id = $1 AND target_id = $2
	`, actorID, targetID).Scan(&rec.ID, &rec.ActorID, &rec.TargetID, &rec.Kind, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest interaction: %w", err)
	}
	return &rec, nil
}

func (s *Store) ActiveInteractionsByActor(ctx context.Context, actorID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id FROM interaction_heads WHERE actor_id = $1`, actorID)
	if err != nil {
		return nil, fmt.Errorf("swiped targets: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) InboundLikes(ctx context.Context, targetID string) ([]*match.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT interaction_id, actor_id, target_id, kind, created_at
		FROM interaction_heads
		WHERE target_id = $1 AND kind = 'LIKE'
		ORDER BY created_at DESC, actor_id
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("inbound likes: %w", err)
	}
	defer rows.Close()
	var out []*match.Interaction
	for rows.Next() {
		var rec match.Interaction
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.TargetID, &rec.Kind, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

const matchColumns = `id, user_a_id, user_b_id, matched_at, active`

func scanMatch(row rowScanner) (*match.Match, error) {
	var m match.Match
	if err := row.Scan(&m.ID, &m.UserAID, &m.UserBID, &m.MatchedAt, &m.Active); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) FindActiveMatch(ctx context.Context, a, b string) (*match.Match, error) {
	return findActiveMatch(ctx, s.db, a, b)
}

func findActiveMatch(ctx context.Context, q querier, a, b string) (*match.Match, error) {
	lo, hi := match.OrderedPair(a, b)
	m, err := scanMatch(q.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE user_a_id = $1 AND user_b_id = $2 AND active`, lo, hi))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	return m, nil
}

func (s *Store) ListActiveMatches(ctx context.Context, userID string) ([]*match.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE active AND (user_a_id = $1 OR user_b_id = $1)
		ORDER BY matched_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()
	var out []*match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMatches returns the number of match rows for the pair, inactive included.
func (s *Store) CountMatches(ctx context.Context, a, b string) (int, error) {
	lo, hi := match.OrderedPair(a, b)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE user_a_id = $1 AND user_b_id = $2`, lo, hi).Scan(&n)
	return n, err
}

// Atomic runs fn inside a read-committed transaction holding the pair's
// advisory lock. Transient failures are retried with exponential backoff and
// surface as match.ErrConflict once retries run out.
func (s *Store) Atomic(ctx context.Context, a, b string, fn func(tx match.Tx) error) error {
	key := match.PairKey(a, b)
	op := func() error {
		err := withTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				return fmt.Errorf("lock pair %s: %w", key, err)
			}
			return fn(&pgTx{tx: tx})
		})
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Str("pair", key).Dur("retry_in", wait).Msg("retrying pair transaction")
	})
	if err != nil && isTransient(err) {
		return fmt.Errorf("pair %s: %w: %w", key, match.ErrConflict, err)
	}
	return err
}

// withTx commits on success and rolls back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// pgTx is the match.Tx handed to Atomic callbacks.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) AppendInteraction(ctx context.Context, rec *match.Interaction) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO interactions (actor_id, target_id, kind, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.ActorID, rec.TargetID, string(rec.Kind), rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		if isCode(err, "23503") {
			return fmt.Errorf("interaction %s->%s: %w", rec.ActorID, rec.TargetID, match.ErrNotFound)
		}
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO interaction_heads (actor_id, target_id, interaction_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id, target_id) DO UPDATE SET
			interaction_id = EXCLUDED.interaction_id,
			kind = EXCLUDED.kind,
			created_at = EXCLUDED.created_at
	`, rec.ActorID, rec.TargetID, rec.ID, string(rec.Kind), rec.CreatedAt)
	return err
}

func (t *pgTx) LatestInteraction(ctx context.Context, actorID, targetID string) (*match.Interaction, error) {
	return latestInteraction(ctx, t.tx, actorID, targetID)
}

func (t *pgTx) FindActiveMatch(ctx context.Context, a, b string) (*match.Match, error) {
	return findActiveMatch(ctx, t.tx, a, b)
}

func (t *pgTx) CreateMatch(ctx context.Context, m *match.Match) error {
	m.UserAID, m.UserBID = match.OrderedPair(m.UserAID, m.UserBID)
	if m.MatchedAt.IsZero() {
		m.MatchedAt = time.Now()
	}
	// A failed statement aborts the whole transaction; the savepoint keeps
	// it usable after a unique violation.
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT create_match`); err != nil {
		return err
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO matches (user_a_id, user_b_id, matched_at, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, m.UserAID, m.UserBID, m.MatchedAt).Scan(&m.ID)
	if isCode(err, "23505") {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT create_match`); rbErr != nil {
			return rbErr
		}
		return match.ErrMatchExists
	}
	if err != nil {
		return err
	}
	m.Active = true
	_, err = t.tx.ExecContext(ctx, `RELEASE SAVEPOINT create_match`)
	return err
}

func (t *pgTx) DeactivateMatch(ctx context.Context, a, b string) (*match.Match, error) {
	lo, hi := match.OrderedPair(a, b)
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE matches SET active = FALSE WHERE user_a_id = $1 AND user_b_id = $2 AND active`, lo, hi); err != nil {
		return nil, err
	}
	m, err := scanMatch(t.tx.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_a_id = $1 AND user_b_id = $2
		ORDER BY matched_at DESC, id DESC
		LIMIT 1
	`, lo, hi))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func isCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// isTransient reports failures worth re-running the whole transaction for.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001", pqErr.Code == "40P01":
			return true
		case pqErr.Code.Class() == "08":
			return true
		}
		return false
	}
	return errors.Is(err, sql.ErrConnDone)
}

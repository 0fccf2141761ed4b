package match

import "context"

// Directory is the read side of the user records. The engine never writes profiles.
type Directory interface {
	// GetProfile returns ErrNotFound for unknown ids.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// GetProfiles returns the profiles that exist among ids, keyed by id.
	GetProfiles(ctx context.Context, ids []string) (map[string]*Profile, error)

	// ListByGender returns every profile whose gender is in genders.
	ListByGender(ctx context.Context, genders []Gender) ([]*Profile, error)
}

// LedgerReader reads the interaction ledger through its latest-per-pair index.
type LedgerReader interface {
	// LatestInteraction returns nil, nil when the pair has no history.
	LatestInteraction(ctx context.Context, actorID, targetID string) (*Interaction, error)

	// ActiveInteractionsByActor returns every target the actor has liked or passed.
	ActiveInteractionsByActor(ctx context.Context, actorID string) (map[string]struct{}, error)

	// InboundLikes returns, for each actor whose latest record toward targetID
	// is a LIKE, that record.
	InboundLikes(ctx context.Context, targetID string) ([]*Interaction, error)
}

// MatchReader reads the match table.
type MatchReader interface {
	// FindActiveMatch returns nil, nil when the pair has no active match.
	FindActiveMatch(ctx context.Context, a, b string) (*Match, error)

	// ListActiveMatches returns the active matches of userID, newest first.
	ListActiveMatches(ctx context.Context, userID string) ([]*Match, error)
}

// Tx is a unit of work serialised per unordered pair of users.
type Tx interface {
	AppendInteraction(ctx context.Context, rec *Interaction) error
	LatestInteraction(ctx context.Context, actorID, targetID string) (*Interaction, error)
	FindActiveMatch(ctx context.Context, a, b string) (*Match, error)

	// CreateMatch inserts m and fills in its ID. It returns ErrMatchExists when
	// an active match for the pair already exists.
	CreateMatch(ctx context.Context, m *Match) error

	// DeactivateMatch flips the active match of the pair to inactive. It
	// returns the pair's most recent match, already inactive ones included,
	// or nil, nil when the pair never matched.
	DeactivateMatch(ctx context.Context, a, b string) (*Match, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	Directory
	LedgerReader
	MatchReader

	// Atomic runs fn in one transaction that no other Atomic call for the same
	// unordered pair {a, b} can interleave with. fn's error aborts the work.
	Atomic(ctx context.Context, a, b string, fn func(tx Tx) error) error
}

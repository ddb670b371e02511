package thoughts

import "context"

// Store is the persistence contract the manager depends on. Implementations
// upsert by thought id; GetThought signals absence with a nil thought, not an
// error.
type Store interface {
	GetThought(ctx context.Context, id string) (*Thought, error)
	GetAllThoughts(ctx context.Context) ([]Thought, error)
	SaveThought(ctx context.Context, thought Thought) error
	DeleteThought(ctx context.Context, id string) error
}

// BlockRepairer refreshes stale media references on blocks loaded from
// storage. Implementations must return the block unchanged when no repair is
// possible.
type BlockRepairer interface {
	RepairBlock(ctx context.Context, block Block) Block
}

// Notifier receives the share side effect. Implementations must not mutate
// the thought.
type Notifier interface {
	ThoughtShared(ctx context.Context, thought Thought)
}

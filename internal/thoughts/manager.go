package thoughts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("thought store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ManagerError is a coded error carrying an operation.reason identifier.
type ManagerError struct {
	code string
	err  error
}

func (e *ManagerError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ManagerError) Unwrap() error {
	return e.err
}

func (e *ManagerError) Code() string {
	return e.code
}

const (
	opManagerNew     = "thoughts.manager.new"
	opCreateThought  = "thoughts.create"
	opGetThought     = "thoughts.get"
	opListThoughts   = "thoughts.list"
	opUpdateThought  = "thoughts.update"
	opDeleteThought  = "thoughts.delete"
	opAddBlock       = "thoughts.block.add"
	opUpdateBlock    = "thoughts.block.update"
	opDeleteBlock    = "thoughts.block.delete"
	opToggleFavorite = "thoughts.favorite.toggle"
	opShareThought   = "thoughts.share"
)

func newManagerError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ManagerError{code: code, err: cause}
}

// ManagerConfig carries the manager's dependencies. Store and IDProvider are
// required; the rest fall back to no-op defaults.
type ManagerConfig struct {
	Store      Store
	Repairer   BlockRepairer
	Notifier   Notifier
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Manager is the facade over thought persistence: CRUD, block mutation,
// derived-field recomputation, search, filtering, and the share side effect.
// Operations addressing an unknown thought id are silent no-ops.
type Manager struct {
	store      Store
	repairer   BlockRepairer
	notifier   Notifier
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewManager validates the configuration and constructs a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, newManagerError(opManagerNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newManagerError(opManagerNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Manager{
		store:      cfg.Store,
		repairer:   cfg.Repairer,
		notifier:   cfg.Notifier,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateThought assigns timestamps and missing identifiers, persists the
// thought, and returns the stored record. A caller-supplied id is trusted: a
// later create with the same id overwrites.
func (m *Manager) CreateThought(ctx context.Context, thought Thought) (*Thought, error) {
	stored := thought.Clone()
	if stored.ID == "" {
		id, err := m.idProvider.NewID()
		if err != nil {
			m.logError(opCreateThought, "id_generation_failed", err)
			return nil, newManagerError(opCreateThought, "id_generation_failed", err)
		}
		stored.ID = id
	}
	for i := range stored.Blocks {
		if err := stored.Blocks[i].Validate(); err != nil {
			m.logError(opCreateThought, "invalid_block", err, zap.String("thought_id", stored.ID))
			return nil, newManagerError(opCreateThought, "invalid_block", err)
		}
	}
	stored.Tags = dedupeTags(stored.Tags)

	now := m.clock()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := m.store.SaveThought(ctx, stored); err != nil {
		m.logError(opCreateThought, "save_failed", err, zap.String("thought_id", stored.ID))
		return nil, newManagerError(opCreateThought, "save_failed", err)
	}
	return &stored, nil
}

// GetThought returns the matching thought with media references repaired, or
// nil when absent.
func (m *Manager) GetThought(ctx context.Context, id string) (*Thought, error) {
	thought, err := m.store.GetThought(ctx, id)
	if err != nil {
		m.logError(opGetThought, "load_failed", err, zap.String("thought_id", id))
		return nil, newManagerError(opGetThought, "load_failed", err)
	}
	if thought == nil {
		return nil, nil
	}
	repaired := m.repairThought(ctx, *thought)
	return &repaired, nil
}

// GetAllThoughts returns every stored thought with blocks sorted by position
// ascending and media references repaired.
func (m *Manager) GetAllThoughts(ctx context.Context) ([]Thought, error) {
	stored, err := m.store.GetAllThoughts(ctx)
	if err != nil {
		m.logError(opListThoughts, "load_failed", err)
		return nil, newManagerError(opListThoughts, "load_failed", err)
	}
	result := make([]Thought, 0, len(stored))
	for _, thought := range stored {
		repaired := m.repairThought(ctx, thought)
		repaired.SortBlocks()
		result = append(result, repaired)
	}
	return result, nil
}

// ThoughtUpdate is a partial update; nil fields leave the stored value
// untouched. Setting Blocks triggers derived-field recomputation.
type ThoughtUpdate struct {
	Title      *string
	Blocks     []Block
	Tags       []string
	Category   *string
	IsFavorite *bool
	Mood       *Mood
}

// UpdateThought merges the partial update over the stored record, refreshes
// UpdatedAt, and recomputes derived fields when the update carries blocks.
// Returns nil without error when the id is unknown.
func (m *Manager) UpdateThought(ctx context.Context, id string, update ThoughtUpdate) (*Thought, error) {
	existing, err := m.store.GetThought(ctx, id)
	if err != nil {
		m.logError(opUpdateThought, "load_failed", err, zap.String("thought_id", id))
		return nil, newManagerError(opUpdateThought, "load_failed", err)
	}
	if existing == nil {
		return nil, nil
	}

	updated := existing.Clone()
	if update.Title != nil {
		updated.Title = *update.Title
	}
	if update.Tags != nil {
		updated.Tags = dedupeTags(update.Tags)
	}
	if update.Category != nil {
		updated.Category = *update.Category
	}
	if update.IsFavorite != nil {
		updated.IsFavorite = *update.IsFavorite
	}
	if update.Mood != nil {
		updated.Mood = *update.Mood
	}
	if update.Blocks != nil {
		for i := range update.Blocks {
			if err := update.Blocks[i].Validate(); err != nil {
				m.logError(opUpdateThought, "invalid_block", err, zap.String("thought_id", id))
				return nil, newManagerError(opUpdateThought, "invalid_block", err)
			}
		}
		updated.Blocks = make([]Block, len(update.Blocks))
		copy(updated.Blocks, update.Blocks)
		recomputeDerivedFields(&updated)
	}
	updated.UpdatedAt = m.clock()

	if err := m.store.SaveThought(ctx, updated); err != nil {
		m.logError(opUpdateThought, "save_failed", err, zap.String("thought_id", id))
		return nil, newManagerError(opUpdateThought, "save_failed", err)
	}
	return &updated, nil
}

// DeleteThought removes the thought and, implicitly, its blocks. Unknown ids
// are a no-op.
func (m *Manager) DeleteThought(ctx context.Context, id string) error {
	if err := m.store.DeleteThought(ctx, id); err != nil {
		m.logError(opDeleteThought, "delete_failed", err, zap.String("thought_id", id))
		return newManagerError(opDeleteThought, "delete_failed", err)
	}
	return nil
}

// AddBlock appends a block to the thought, assigning an id when the block has
// none, and persists the whole thought. Returns nil when the thought is
// unknown.
func (m *Manager) AddBlock(ctx context.Context, thoughtID string, block Block) (*Thought, error) {
	existing, err := m.store.GetThought(ctx, thoughtID)
	if err != nil {
		m.logError(opAddBlock, "load_failed", err, zap.String("thought_id", thoughtID))
		return nil, newManagerError(opAddBlock, "load_failed", err)
	}
	if existing == nil {
		return nil, nil
	}
	if block.ID == "" {
		id, err := m.idProvider.NewID()
		if err != nil {
			m.logError(opAddBlock, "id_generation_failed", err, zap.String("thought_id", thoughtID))
			return nil, newManagerError(opAddBlock, "id_generation_failed", err)
		}
		block.ID = id
	}
	if err := block.Validate(); err != nil {
		m.logError(opAddBlock, "invalid_block", err, zap.String("thought_id", thoughtID))
		return nil, newManagerError(opAddBlock, "invalid_block", err)
	}

	updated := existing.Clone()
	updated.Blocks = append(updated.Blocks, block)
	return m.persistBlockMutation(ctx, opAddBlock, updated)
}

// BlockUpdate is a partial block update; nil fields leave the stored value
// untouched. A non-nil Payload replaces the block's payload and retags it.
type BlockUpdate struct {
	Content   *string
	Position  *int
	Timestamp *time.Time
	Payload   BlockPayload
}

// UpdateBlock applies the partial update to one block and persists the whole
// thought. Unknown thought or block ids are silent no-ops.
func (m *Manager) UpdateBlock(ctx context.Context, thoughtID, blockID string, update BlockUpdate) (*Thought, error) {
	existing, err := m.store.GetThought(ctx, thoughtID)
	if err != nil {
		m.logError(opUpdateBlock, "load_failed", err, zap.String("thought_id", thoughtID))
		return nil, newManagerError(opUpdateBlock, "load_failed", err)
	}
	if existing == nil {
		return nil, nil
	}

	updated := existing.Clone()
	found := false
	for i := range updated.Blocks {
		if updated.Blocks[i].ID != blockID {
			continue
		}
		block := updated.Blocks[i]
		if update.Content != nil {
			block.Content = *update.Content
		}
		if update.Position != nil {
			block.Position = *update.Position
		}
		if update.Timestamp != nil {
			block.Timestamp = update.Timestamp
		}
		if update.Payload != nil {
			block = block.WithPayload(update.Payload)
		}
		if err := block.Validate(); err != nil {
			m.logError(opUpdateBlock, "invalid_block", err,
				zap.String("thought_id", thoughtID),
				zap.String("block_id", blockID))
			return nil, newManagerError(opUpdateBlock, "invalid_block", err)
		}
		updated.Blocks[i] = block
		found = true
		break
	}
	if !found {
		return nil, nil
	}
	return m.persistBlockMutation(ctx, opUpdateBlock, updated)
}

// DeleteBlock removes one block and persists the whole thought. Deleting a
// block does not remove its stored attachment bytes. Unknown thought or block
// ids are silent no-ops.
func (m *Manager) DeleteBlock(ctx context.Context, thoughtID, blockID string) (*Thought, error) {
	existing, err := m.store.GetThought(ctx, thoughtID)
	if err != nil {
		m.logError(opDeleteBlock, "load_failed", err, zap.String("thought_id", thoughtID))
		return nil, newManagerError(opDeleteBlock, "load_failed", err)
	}
	if existing == nil {
		return nil, nil
	}

	updated := existing.Clone()
	remaining := make([]Block, 0, len(updated.Blocks))
	found := false
	for _, block := range updated.Blocks {
		if block.ID == blockID {
			found = true
			continue
		}
		remaining = append(remaining, block)
	}
	if !found {
		return nil, nil
	}
	updated.Blocks = remaining
	return m.persistBlockMutation(ctx, opDeleteBlock, updated)
}

// persistBlockMutation recomputes derived fields, refreshes UpdatedAt, and
// saves. All block-mutating entry points funnel through here so the
// derivation policy stays uniform.
func (m *Manager) persistBlockMutation(ctx context.Context, operation string, thought Thought) (*Thought, error) {
	recomputeDerivedFields(&thought)
	thought.UpdatedAt = m.clock()
	if err := m.store.SaveThought(ctx, thought); err != nil {
		m.logError(operation, "save_failed", err, zap.String("thought_id", thought.ID))
		return nil, newManagerError(operation, "save_failed", err)
	}
	return &thought, nil
}

// ToggleFavorite flips the favorite flag. Unknown ids are a silent no-op.
func (m *Manager) ToggleFavorite(ctx context.Context, id string) (*Thought, error) {
	existing, err := m.store.GetThought(ctx, id)
	if err != nil {
		m.logError(opToggleFavorite, "load_failed", err, zap.String("thought_id", id))
		return nil, newManagerError(opToggleFavorite, "load_failed", err)
	}
	if existing == nil {
		return nil, nil
	}
	flipped := !existing.IsFavorite
	return m.UpdateThought(ctx, id, ThoughtUpdate{IsFavorite: &flipped})
}

// ShareThought notifies the configured Notifier. No state is mutated; unknown
// ids and a missing notifier are silent no-ops.
func (m *Manager) ShareThought(ctx context.Context, id string) error {
	existing, err := m.store.GetThought(ctx, id)
	if err != nil {
		m.logError(opShareThought, "load_failed", err, zap.String("thought_id", id))
		return newManagerError(opShareThought, "load_failed", err)
	}
	if existing == nil || m.notifier == nil {
		return nil
	}
	m.notifier.ThoughtShared(ctx, existing.Clone())
	return nil
}

// repairThought runs the block repairer over media blocks, leaving other
// blocks untouched.
func (m *Manager) repairThought(ctx context.Context, thought Thought) Thought {
	repaired := thought.Clone()
	if m.repairer == nil {
		return repaired
	}
	for i := range repaired.Blocks {
		if repaired.Blocks[i].Type != BlockTypeMedia {
			continue
		}
		repaired.Blocks[i] = m.repairer.RepairBlock(ctx, repaired.Blocks[i])
	}
	return repaired
}

func (m *Manager) loggerOrDefault() *zap.Logger {
	if m == nil || m.logger == nil {
		return noOpLogger
	}
	return m.logger
}

func (m *Manager) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	m.loggerOrDefault().Error("thought manager error", attrs...)
}

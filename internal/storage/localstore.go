package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

// ThoughtCollectionKey is the single row under which the whole thought
// collection lives, serialized as one JSON array.
const ThoughtCollectionKey = "deepthoughts.thoughts"

// DefaultCacheTTL bounds how long a deserialized collection is served from
// memory before the backing row is read again.
const DefaultCacheTTL = 10 * time.Second

var (
	errMissingDatabase = errors.New("database handle is required")
	// ErrSaveFailed wraps persistence failures on the write path. Read-path
	// failures never surface to callers; they degrade to an empty collection.
	ErrSaveFailed = errors.New("storage: save failed")
)

// Record is one key-value row. The thought collection occupies a single key;
// other keys (user profile, onboarding flag) belong to collaborators outside
// this package.
type Record struct {
	Key              string `gorm:"column:key;primaryKey;size:190;not null"`
	Value            string `gorm:"column:value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "kv_records"
}

// LocalStoreConfig carries the store's dependencies. Database is required;
// Clock defaults to time.Now and CacheTTL to DefaultCacheTTL.
type LocalStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// LocalStore persists the thought collection as one serialized row and keeps
// a short-lived read cache over it. Writes go through a read-modify-write of
// the whole collection and repopulate the cache with the written state.
type LocalStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	cache *readCache
}

// NewLocalStore validates the configuration and constructs a LocalStore.
func NewLocalStore(cfg LocalStoreConfig) (*LocalStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
		cache:  newReadCache(clock, ttl),
	}, nil
}

// GetThought returns the stored thought or nil when absent.
func (s *LocalStore) GetThought(ctx context.Context, id string) (*thoughts.Thought, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.loadCollection(ctx)
	for _, thought := range collection {
		if thought.ID == id {
			found := thought.Clone()
			return &found, nil
		}
	}
	return nil, nil
}

// GetAllThoughts returns the stored collection. Storage or parse failures
// degrade to an empty collection.
func (s *LocalStore) GetAllThoughts(ctx context.Context) ([]thoughts.Thought, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCollection(ctx), nil
}

// SaveThought upserts by thought id and rewrites the collection row.
func (s *LocalStore) SaveThought(ctx context.Context, thought thoughts.Thought) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.loadCollection(ctx)
	replaced := false
	for i := range collection {
		if collection[i].ID == thought.ID {
			collection[i] = thought.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		collection = append(collection, thought.Clone())
	}
	return s.persistCollection(ctx, collection)
}

// DeleteThought removes the thought from the collection; absent ids skip the
// write entirely.
func (s *LocalStore) DeleteThought(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.loadCollection(ctx)
	remaining := make([]thoughts.Thought, 0, len(collection))
	found := false
	for _, thought := range collection {
		if thought.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, thought)
	}
	if !found {
		return nil
	}
	return s.persistCollection(ctx, remaining)
}

// loadCollection serves from the read cache while fresh, otherwise reads and
// deserializes the collection row. Callers must hold s.mu.
func (s *LocalStore) loadCollection(ctx context.Context) []thoughts.Thought {
	if cached, ok := s.cache.get(); ok {
		return cached
	}

	var record Record
	err := s.db.WithContext(ctx).
		Where("key = ?", ThoughtCollectionKey).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.cache.put(nil)
		return []thoughts.Thought{}
	}
	if err != nil {
		s.logger.Error("thought collection read failed", zap.Error(err))
		return []thoughts.Thought{}
	}

	var collection []thoughts.Thought
	if err := json.Unmarshal([]byte(record.Value), &collection); err != nil {
		s.logger.Error("thought collection parse failed", zap.Error(err))
		return []thoughts.Thought{}
	}
	s.cache.put(collection)
	return collection
}

// persistCollection serializes and upserts the collection row, then seeds the
// cache with the written state. Callers must hold s.mu.
func (s *LocalStore) persistCollection(ctx context.Context, collection []thoughts.Thought) error {
	serialized, err := json.Marshal(collection)
	if err != nil {
		s.cache.invalidate()
		s.logger.Error("thought collection serialization failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	record := Record{
		Key:              ThoughtCollectionKey,
		Value:            string(serialized),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		s.cache.invalidate()
		s.logger.Error("thought collection write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	s.cache.put(collection)
	return nil
}

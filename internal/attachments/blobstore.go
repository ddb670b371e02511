package attachments

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	// ErrBlobNotFound indicates no stored bytes exist for the block id.
	ErrBlobNotFound = errors.New("attachments: blob not found")
)

// Blob is the raw bytes of one media attachment, keyed by the owning block
// id. Blobs live outside the thought collection row; thoughts reference them
// only through session-scoped URLs.
type Blob struct {
	BlockID          string `gorm:"column:block_id;primaryKey;size:190;not null"`
	MediaType        string `gorm:"column:media_type;size:64;not null"`
	Data             []byte `gorm:"column:data;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Blob) TableName() string {
	return "attachment_blobs"
}

// BlobStoreConfig carries the store's dependencies. Database is required.
type BlobStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	URLs     *SessionURLs
	Logger   *zap.Logger
}

// BlobStore is the binary attachment store: put/get/delete of raw bytes by
// block id, plus derivation of session-scoped URLs for serving them.
type BlobStore struct {
	db     *gorm.DB
	clock  func() time.Time
	urls   *SessionURLs
	logger *zap.Logger
}

// NewBlobStore validates the configuration and constructs a BlobStore.
func NewBlobStore(cfg BlobStoreConfig) (*BlobStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	urls := cfg.URLs
	if urls == nil {
		urls = NewSessionURLs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{db: cfg.Database, clock: clock, urls: urls, logger: logger}, nil
}

// URLs exposes the session URL registry backing this store.
func (s *BlobStore) URLs() *SessionURLs {
	return s.urls
}

// Put stores or replaces the bytes for a block id.
func (s *BlobStore) Put(ctx context.Context, blockID, mediaType string, data []byte) error {
	blob := Blob{
		BlockID:          blockID,
		MediaType:        mediaType,
		Data:             data,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&blob).Error
	if err != nil {
		s.logger.Error("attachment write failed", zap.Error(err), zap.String("block_id", blockID))
		return err
	}
	return nil
}

// Get returns the stored blob, or ErrBlobNotFound.
func (s *BlobStore) Get(ctx context.Context, blockID string) (*Blob, error) {
	var blob Blob
	err := s.db.WithContext(ctx).
		Where("block_id = ?", blockID).
		Take(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		s.logger.Error("attachment read failed", zap.Error(err), zap.String("block_id", blockID))
		return nil, err
	}
	return &blob, nil
}

// Delete removes the stored bytes; absent ids are a no-op.
func (s *BlobStore) Delete(ctx context.Context, blockID string) error {
	err := s.db.WithContext(ctx).
		Where("block_id = ?", blockID).
		Delete(&Blob{}).Error
	if err != nil {
		s.logger.Error("attachment delete failed", zap.Error(err), zap.String("block_id", blockID))
		return err
	}
	return nil
}

// URLFor issues a fresh session-scoped URL for the block's stored bytes, or
// ErrBlobNotFound when nothing is stored.
func (s *BlobStore) URLFor(ctx context.Context, blockID string) (string, error) {
	if _, err := s.Get(ctx, blockID); err != nil {
		return "", err
	}
	return s.urls.Issue(blockID), nil
}

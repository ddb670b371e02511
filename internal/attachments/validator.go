package attachments

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

// Validator checks whether a media block's URL is still resolvable in the
// current session and regenerates it from the blob store when it is not.
// Validity results are cached per URL for the session; the cache has no
// eviction and is cleared only on explicit request.
type Validator struct {
	blobs  *BlobStore
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]bool
}

// NewValidator constructs a Validator over the blob store.
func NewValidator(blobs *BlobStore, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		blobs:  blobs,
		logger: logger,
		cache:  make(map[string]bool),
	}
}

// IsValid reports whether the URL resolves in the current session.
func (v *Validator) IsValid(url string) bool {
	v.mu.Lock()
	if cached, ok := v.cache[url]; ok {
		v.mu.Unlock()
		return cached
	}
	v.mu.Unlock()

	_, valid := v.blobs.URLs().Resolve(url)

	v.mu.Lock()
	v.cache[url] = valid
	v.mu.Unlock()
	return valid
}

// ClearCache drops every cached validity result.
func (v *Validator) ClearCache() {
	v.mu.Lock()
	v.cache = make(map[string]bool)
	v.mu.Unlock()
}

// RepairBlock returns the block with a fresh URL when its media reference has
// gone stale and the blob store still holds the bytes. Unrecoverable blocks
// come back unchanged; the caller renders a placeholder.
func (v *Validator) RepairBlock(ctx context.Context, block thoughts.Block) thoughts.Block {
	media, ok := block.Media()
	if !ok {
		return block
	}
	if v.IsValid(media.URL) {
		return block
	}

	url, err := v.blobs.URLFor(ctx, block.ID)
	if err != nil {
		v.logger.Warn("media reference unrecoverable",
			zap.String("block_id", block.ID),
			zap.String("url", media.URL),
			zap.Error(err))
		return block
	}

	v.mu.Lock()
	v.cache[url] = true
	v.mu.Unlock()

	media.URL = url
	return block.WithPayload(media)
}

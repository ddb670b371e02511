package attachments

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URLScheme prefixes every session-scoped attachment reference.
const URLScheme = "session://"

// SessionURLs maps session-scoped URLs to block ids. References exist only in
// process memory, so every URL from an earlier run resolves as invalid — the
// same lifetime a browser object URL has across page reloads.
type SessionURLs struct {
	mu      sync.RWMutex
	byURL   map[string]string
	byBlock map[string]string
}

// NewSessionURLs constructs an empty registry.
func NewSessionURLs() *SessionURLs {
	return &SessionURLs{
		byURL:   make(map[string]string),
		byBlock: make(map[string]string),
	}
}

// Issue mints a fresh URL for the block id, revoking any URL previously
// issued for the same block.
func (r *SessionURLs) Issue(blockID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if previous, ok := r.byBlock[blockID]; ok {
		delete(r.byURL, previous)
	}
	url := URLScheme + uuid.NewString()
	r.byURL[url] = blockID
	r.byBlock[blockID] = url
	return url
}

// Resolve returns the block id behind a URL, when the URL is live.
func (r *SessionURLs) Resolve(url string) (string, bool) {
	if !strings.HasPrefix(url, URLScheme) {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	blockID, ok := r.byURL[url]
	return blockID, ok
}

// Revoke invalidates the URL issued for a block id, if any.
func (r *SessionURLs) Revoke(blockID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if url, ok := r.byBlock[blockID]; ok {
		delete(r.byURL, url)
		delete(r.byBlock, blockID)
	}
}

package bridge

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// shown when no media session is active at all
	defaultTitle  = "Nothing Playing"
	defaultArtist = "Windows Media"

	// shown when a session exists but doesn't report the field
	unknownTitle  = "Unknown Title"
	unknownArtist = "Unknown Artist"
)

// MediaSnapshot is the externally observable "now playing" state. Every field is always populated,
// absence of real data is expressed through the sentinel values above
type MediaSnapshot struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	IsPlaying bool   `json:"is_playing"`
}

// DefaultSnapshot is what we report when there's nothing to report
func DefaultSnapshot() MediaSnapshot {
	return MediaSnapshot{
		Title:     defaultTitle,
		Artist:    defaultArtist,
		Album:     "",
		IsPlaying: false,
	}
}

func (s MediaSnapshot) String() string {
	return fmt.Sprintf("<snapshot: %q by %q (%q), playing: %t>", s.Title, s.Artist, s.Album, s.IsPlaying)
}

// ProviderError wraps any failure coming out of an OS media or audio provider
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	return &ProviderError{Op: op, Err: err}
}

// SnapshotCache holds the last successfully observed media state. It is the only place where
// provider read failures get turned back into data
type SnapshotCache struct {
	lock sync.RWMutex
	last MediaSnapshot
}

// NewSnapshotCache creates a cache primed with the default snapshot
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{last: DefaultSnapshot()}
}

// Load returns the cached snapshot
func (c *SnapshotCache) Load() MediaSnapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.last
}

// Store overwrites the cached snapshot
func (c *SnapshotCache) Store(snapshot MediaSnapshot) {
	c.lock.Lock()
	c.last = snapshot
	c.lock.Unlock()
}

// Resolve takes the outcome of a fresh read. A successful read replaces the cache and is returned
// as-is, a failed one yields the last known-good snapshot and reports it as stale
func (c *SnapshotCache) Resolve(snapshot MediaSnapshot, err error) (MediaSnapshot, bool) {
	if err != nil {
		return c.Load(), true
	}

	c.Store(snapshot)
	return snapshot, false
}

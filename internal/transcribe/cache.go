package transcribe

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes transcripts by media path so that keyword resolution
// and subtitle generation share one whisper run per clip. Concurrent
// requests for the same clip are collapsed into a single run.
type Cache struct {
	tr    Transcriber
	group singleflight.Group

	mu     sync.Mutex
	byPath map[string]*Transcript
}

// NewCache wraps a Transcriber with memoization. Errors are not cached,
// so a failed run is retried on the next request.
func NewCache(tr Transcriber) *Cache {
	return &Cache{
		tr:     tr,
		byPath: make(map[string]*Transcript),
	}
}

// Transcribe returns the cached transcript for mediaPath, running the
// underlying transcriber at most once per path.
func (c *Cache) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	c.mu.Lock()
	if t, ok := c.byPath[mediaPath]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(mediaPath, func() (any, error) {
		c.mu.Lock()
		if t, ok := c.byPath[mediaPath]; ok {
			c.mu.Unlock()
			return t, nil
		}
		c.mu.Unlock()

		t, err := c.tr.Transcribe(ctx, mediaPath)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.byPath[mediaPath] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Transcript), nil
}

// Reset drops all cached transcripts.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPath = make(map[string]*Transcript)
}

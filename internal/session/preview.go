package session

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rs/xid"
)

// Thumbnail bounds for upload previews.
const (
	ThumbnailSize    = 320
	thumbnailQuality = 80
)

// Preview is an encoded upload thumbnail.
type Preview struct {
	Data        []byte
	ContentType string
}

// PreviewStore holds upload thumbnails under opaque keys. Every key must be
// released once the image it shows is superseded, removed or its session
// closes.
type PreviewStore struct {
	mu    sync.RWMutex
	items map[string]Preview
}

// NewPreviewStore creates an empty store.
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{items: make(map[string]Preview)}
}

// Create encodes a thumbnail of img and returns its key.
func (p *PreviewStore) Create(img image.Image) (string, error) {
	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}

	key := xid.New().String()
	p.mu.Lock()
	p.items[key] = Preview{Data: buf.Bytes(), ContentType: "image/jpeg"}
	p.mu.Unlock()
	return key, nil
}

// Get returns the preview stored under key.
func (p *PreviewStore) Get(key string) (Preview, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pv, ok := p.items[key]
	return pv, ok
}

// Release drops key. Releasing an unknown or empty key is a no-op.
func (p *PreviewStore) Release(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	delete(p.items, key)
	p.mu.Unlock()
}

// Len returns the number of live previews.
func (p *PreviewStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

package decode

import (
	"runtime"
	"time"
)

// Config holds the configuration for image decoding.
type Config struct {
	// Workers is the number of decode goroutines.
	Workers int
	// MaxPixels rejects images whose width*height exceeds it, before any
	// pixel memory is allocated. Zero disables the check.
	MaxPixels int
	// Timeout bounds a single decode, queueing included.
	Timeout time.Duration
}

// DefaultConfig provides sensible defaults for product photos.
func DefaultConfig() Config {
	return Config{
		Workers: max(2, runtime.NumCPU()/2),
		// 40 megapixels covers any phone camera
		MaxPixels: 40_000_000,
		Timeout:   10 * time.Second,
	}
}

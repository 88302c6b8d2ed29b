// Package delivery archives exported snapshots. A Sink receives every
// downloaded file; where it ends up depends on EXPORT_SINK.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// ErrInvalidName is returned for names that are empty or contain a path.
var ErrInvalidName = errors.New("delivery: invalid file name")

// Sink stores an exported file and returns where it was put.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(context.Context, string, string, []byte) (string, error) { return "", nil }

// checkName rejects anything that is not a plain file name.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || path.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r == '\\' || r == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

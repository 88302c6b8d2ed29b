// Package model defines the records persisted by the application.
package model

import (
	"encoding/json"
	"time"
)

// Template is a saved editor state. Payload is opaque to storage: it is
// whatever the editor serialized and is returned byte for byte.
type Template struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	OwnerID   string          `json:"ownerId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

package core

import (
	"context"
	"time"
)

// MaxBackups is the per-drawing backup retention bound. Older snapshots are
// evicted first.
const MaxBackups = 5

// Store keys for the three top-level persisted entries. Each value is a single
// JSON document that is read-modify-written as a whole.
const (
	DrawingsKey = "excalisave:drawings"
	CurrentKey  = "excalisave:current"
	BackupsKey  = "excalisave:backups"
)

type (
	// DrawingData is the opaque content payload of a drawing: the element
	// list and the canvas app state, each already serialized by whatever
	// surface produced them. The engine stores and returns these blobs
	// verbatim and never inspects their schema.
	DrawingData struct {
		Elements string `json:"elements"`
		AppState string `json:"appState"`
	}

	// Drawing is a persisted named document.
	Drawing struct {
		ID        string      `json:"id"`
		Name      string      `json:"name"`
		CreatedAt time.Time   `json:"createdAt"`
		UpdatedAt time.Time   `json:"updatedAt"`
		Preview   string      `json:"preview,omitempty"` // optional thumbnail encoding
		Data      DrawingData `json:"data"`
	}

	// Backup is an immutable snapshot of a drawing's content at save time.
	Backup struct {
		ID        string      `json:"id"`
		DrawingID string      `json:"drawingId"`
		Timestamp time.Time   `json:"timestamp"`
		Data      DrawingData `json:"data"`
	}

	// StateStore is the durable key/value capability the repository persists
	// through. Implementations must treat an absent key as (nil, nil), not an
	// error; every other failure is a real storage fault.
	StateStore interface {
		Load(ctx context.Context, key string) ([]byte, error)
		Store(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
		Close() error
	}
)

// Empty reports whether the payload carries no content at all. An extraction
// that yields an empty payload is treated as "nothing to save".
func (d DrawingData) Empty() bool {
	return d.Elements == "" && d.AppState == ""
}

// Package repo holds the per-room shape snapshot stores.
package repo

import (
	"context"
	"errors"

	"github.com/wirejam/wirejam/internal/models"
)

// ErrUnknownBackend is returned for an unsupported SHAPE_STORE value.
var ErrUnknownBackend = errors.New("unknown shape store backend")

// ShapeRepo is the authoritative id -> shape mapping of every room.
// All operations are idempotent; Snapshot order is unspecified.
type ShapeRepo interface {
	// Upsert stores s, replacing any shape with the same id.
	Upsert(ctx context.Context, roomId string, s models.Shape) error
	// Replace stores s only when a shape with its id exists and reports whether it did.
	Replace(ctx context.Context, roomId string, s models.Shape) (bool, error)
	// Remove deletes a shape; a missing id is not an error.
	Remove(ctx context.Context, roomId, shapeId string) error
	// Clear empties the room.
	Clear(ctx context.Context, roomId string) error
	// ReplaceAll swaps the whole room for shapes in one step. On error the previous
	// snapshot is left as it was.
	ReplaceAll(ctx context.Context, roomId string, shapes []models.Shape) error
	// Snapshot returns every shape of the room.
	Snapshot(ctx context.Context, roomId string) ([]models.Shape, error)
	// Count returns the number of shapes in the room.
	Count(ctx context.Context, roomId string) (int, error)
}

// Toucher is implemented by stores that expire idle rooms. Touch marks the room as in use.
type Toucher interface {
	Touch(ctx context.Context, roomId string) error
}

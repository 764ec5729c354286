package contact

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("contact message not found")
	ErrValidation    = errors.New("validation failed")
	ErrInvalidStatus = errors.New("invalid status")
)

// Repository persists contact messages. Messages are never deleted.
type Repository interface {
	Create(ctx context.Context, m *Message) error

	// List returns messages newest first
	List(ctx context.Context, opts ListOptions) ([]Message, error)

	// UpdateStatus sets the status and returns the updated message or ErrNotFound.
	// Re-applying the current status must leave the message unchanged.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (*Message, error)
}

package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/loan-advisor-api/internal/database"
)

// BunRepository handles contact message persistence in PostgreSQL
type BunRepository struct {
	db *bun.DB
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// Create inserts a new contact message
func (r *BunRepository) Create(ctx context.Context, m *Message) error {
	row := &database.ContactMessage{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Message:   m.Message,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// List returns messages newest first
func (r *BunRepository) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	opts = opts.normalized()

	var rows []database.ContactMessage
	q := r.db.NewSelect().
		Model(&rows).
		OrderExpr("created_at DESC, id DESC").
		Limit(opts.Limit).
		Offset(opts.Offset)
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, mapDBMessageToModel(&rows[i]))
	}
	return messages, nil
}

// UpdateStatus sets the status of a message and returns the updated row.
// updated_at only moves when the status actually changes.
func (r *BunRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (*Message, error) {
	row := new(database.ContactMessage)
	err := r.db.NewUpdate().
		Model(row).
		Set("updated_at = CASE WHEN status = ? THEN updated_at ELSE ? END", string(status), updatedAt).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update contact message status: %w", err)
	}

	m := mapDBMessageToModel(row)
	return &m, nil
}

func mapDBMessageToModel(row *database.ContactMessage) Message {
	return Message{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Message:   row.Message,
		Status:    Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

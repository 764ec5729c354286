package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/loan-advisor-api/internal/logging"
)

const notifyTimeout = 30 * time.Second

// Notifier tells an administrator about a new contact message
type Notifier interface {
	NotifyContact(ctx context.Context, m Message) error
}

// Service handles contact intake business logic
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time

	notifications sync.WaitGroup
}

// NewService creates a contact service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, logger *logging.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit stores a new message with status "new"
func (s *Service) Submit(ctx context.Context, name, email, message string) (*Message, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	message = strings.TrimSpace(message)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	m := &Message{
		ID:        id.String(),
		Name:      name,
		Email:     email,
		Message:   message,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save contact message: %w", err)
	}

	s.notify(ctx, *m)

	return m, nil
}

// List returns messages newest first, optionally filtered by status
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: %w %q", ErrValidation, ErrInvalidStatus, opts.Status)
	}

	messages, err := s.repo.List(ctx, opts.normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return messages, nil
}

// UpdateStatus changes a message's status. Setting the current status again succeeds.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Message, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %w %q", ErrValidation, ErrInvalidStatus, status)
	}

	// ids are UUIDv7; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	m, err := s.repo.UpdateStatus(ctx, id, status, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update contact message: %w", err)
	}
	return m, nil
}

// Wait blocks until in-flight notifications have finished
func (s *Service) Wait() {
	s.notifications.Wait()
}

// notify sends the admin notification in the background; failures are only logged
func (s *Service) notify(ctx context.Context, m Message) {
	if s.notifier == nil {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyContact(notifyCtx, m); err != nil {
			s.logger.Warn("failed to send contact notification", "message_id", m.ID, "error", err)
		}
	}()
}

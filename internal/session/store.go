package session

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/giftcart-service/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Store keeps one cart per view session for the session lifetime only.
type Store interface {
	// Get returns ErrSessionNotFound for unknown or expired sessions
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Save creates or replaces the session and refreshes its TTL
	Save(ctx context.Context, s *domain.Session) error

	Delete(ctx context.Context, id string) error

	Close() error
}

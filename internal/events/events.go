package events

import (
	"context"
	"time"
)

type EventType string

const (
	FreeGiftGranted EventType = "free_gift_granted"
	FreeGiftRevoked EventType = "free_gift_revoked"
)

// PromotionEvent is emitted when a cart crosses the free-gift threshold in either direction.
type PromotionEvent struct {
	Type       EventType `json:"event_type"`
	SessionID  string    `json:"session_id"`
	Subtotal   int64     `json:"subtotal"`
	GiftID     int64     `json:"gift_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt PromotionEvent) error
	Close() error
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, PromotionEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }

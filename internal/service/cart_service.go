package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/giftcart-service/internal/catalog"
	"github.com/fjod/go_cart/giftcart-service/internal/domain"
	"github.com/fjod/go_cart/giftcart-service/internal/engine"
	"github.com/fjod/go_cart/giftcart-service/internal/events"
	"github.com/fjod/go_cart/giftcart-service/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const publishTimeout = 5 * time.Second

type CartService struct {
	catalog   catalog.Catalog
	store     session.Store
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex         // serializes load-mutate-save cycles
	sfg       singleflight.Group // collapses concurrent reads of one session
	publishWg sync.WaitGroup
}

func NewCartService(c catalog.Catalog, store session.Store, publisher events.Publisher, logger *zap.Logger) *CartService {
	return &CartService{
		catalog:   c,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *CartService) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.GetAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// StartSession opens a fresh session with an empty cart.
func (s *CartService) StartSession(ctx context.Context) (*domain.Cart, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		Lines:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("session started", zap.String("session_id", sess.ID))
	cart := engine.New().Snapshot(sess.ID)
	return &cart, nil
}

// GetCart returns the cart of the session. Unknown or expired sessions read as empty carts.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	// the shared load must not die with whichever caller started it
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		sess, err := s.load(loadCtx, sessionID)
		if err != nil {
			return nil, err
		}
		cart := engine.Restore(sess.Lines).Snapshot(sessionID)
		return &cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64) (*domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}

	return s.mutate(ctx, sessionID, func(e *engine.Engine) (engine.Transition, error) {
		return e.AddToCart(product)
	})
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(e *engine.Engine) (engine.Transition, error) {
		return e.UpdateQuantity(productID, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (*domain.Cart, error) {
	return s.UpdateQuantity(ctx, sessionID, productID, 0)
}

// EndSession drops the session; the next request with the same id starts from an empty cart.
func (s *CartService) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Error("session delete failed", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *CartService) mutate(ctx context.Context, sessionID string, apply func(*engine.Engine) (engine.Transition, error)) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e := engine.Restore(sess.Lines)
	transition, err := apply(e)
	if err != nil {
		return nil, err
	}

	sess.Lines = e.Lines()
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		s.logger.Error("session save failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("save session: %w", err)
	}

	cart := e.Snapshot(sessionID)
	if transition != engine.NoChange {
		s.publish(transition, &cart)
	}
	return &cart, nil
}

func (s *CartService) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		now := s.now()
		return &domain.Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		s.logger.Error("session load failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *CartService) publish(t engine.Transition, cart *domain.Cart) {
	evt := events.PromotionEvent{
		SessionID:  cart.SessionID,
		Subtotal:   cart.Subtotal,
		GiftID:     domain.FreeGiftID,
		OccurredAt: s.now(),
	}
	switch t {
	case engine.GiftGranted:
		evt.Type = events.FreeGiftGranted
	case engine.GiftRevoked:
		evt.Type = events.FreeGiftRevoked
	}

	s.logger.Info("free gift rule fired",
		zap.String("session_id", evt.SessionID),
		zap.String("transition", t.String()),
		zap.Int64("subtotal", evt.Subtotal),
	)

	s.publishWg.Add(1)
	go func() {
		defer s.publishWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("promotion event publish failed", zap.String("session_id", evt.SessionID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight promotion events are published or have failed.
// Call it after the HTTP server stops and before closing the publisher.
func (s *CartService) Wait() {
	s.publishWg.Wait()
}

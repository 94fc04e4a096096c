package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/giftcart-service/internal/catalog"
	"github.com/fjod/go_cart/giftcart-service/internal/domain"
	"github.com/fjod/go_cart/giftcart-service/internal/engine"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	Products(ctx context.Context) ([]domain.Product, error)
	StartSession(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionID string, productID int64) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID string, productID int64) (*domain.Cart, error)
	EndSession(ctx context.Context, sessionID string) error
}

type CartHandler struct {
	service CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(service CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.service.Products(ctx)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

func (h *CartHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.StartSession(ctx)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    cart.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionHeader, cart.SessionID)
	h.respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(ctx, sessionID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.service.AddItem(ctx, sessionID, req.ProductID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.Quantity == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}

	cart, err := h.service.UpdateQuantity(ctx, sessionID, productID, *req.Quantity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(ctx, sessionID, productID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.service.EndSession(ctx, sessionID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := getSessionIDFromContext(r.Context())
	if sessionID == "" {
		h.respondError(w, http.StatusUnauthorized, "missing_session", "missing cart session")
		return "", false
	}
	return sessionID, true
}

func (h *CartHandler) productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "product_id must be an integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		h.respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, engine.ErrQuantityOverflow):
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, engine.ErrFreeGiftLocked):
		h.respondError(w, http.StatusConflict, "free_gift_locked", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.logger.Error("cart request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/giftcart-service/internal/catalog"
	"github.com/fjod/go_cart/giftcart-service/internal/domain"
	"github.com/fjod/go_cart/giftcart-service/internal/engine"
	"github.com/fjod/go_cart/giftcart-service/internal/events"
	"github.com/fjod/go_cart/giftcart-service/internal/service"
	"github.com/fjod/go_cart/giftcart-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceMock struct {
	cart *domain.Cart
	err  error
}

func (s serviceMock) Products(context.Context) ([]domain.Product, error) {
	return nil, s.err
}

func (s serviceMock) StartSession(context.Context) (*domain.Cart, error) {
	return s.cart, s.err
}

func (s serviceMock) GetCart(context.Context, string) (*domain.Cart, error) {
	return s.cart, s.err
}

func (s serviceMock) AddItem(context.Context, string, int64) (*domain.Cart, error) {
	return s.cart, s.err
}

func (s serviceMock) UpdateQuantity(context.Context, string, int64, int) (*domain.Cart, error) {
	return s.cart, s.err
}

func (s serviceMock) RemoveItem(context.Context, string, int64) (*domain.Cart, error) {
	return s.cart, s.err
}

func (s serviceMock) EndSession(context.Context, string) error {
	return s.err
}

func setupRouter(t *testing.T) http.Handler {
	store := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	svc := service.NewCartService(catalog.NewStatic(), store, events.NoopPublisher{}, zap.NewNop())
	return NewRouter(NewCartHandler(svc, 5*time.Second, zap.NewNop()), zap.NewNop(), 5*time.Second)
}

func do(t *testing.T, h http.Handler, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func quantityBody(q int) UpdateQuantityRequestDTO {
	return UpdateQuantityRequestDTO{Quantity: &q}
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) domain.Cart {
	t.Helper()
	var cart domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	return cart
}

func TestHealth(t *testing.T) {
	rec := do(t, setupRouter(t), "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetProducts(t *testing.T) {
	rec := do(t, setupRouter(t), "GET", "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProductsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Products, 4)
	assert.Equal(t, "Laptop", resp.Products[0].Name)
}

func TestStartSession_SetsHeaderAndCookie(t *testing.T) {
	rec := do(t, setupRouter(t), "POST", "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	sessionID := rec.Header().Get(SessionHeader)
	assert.NotEmpty(t, sessionID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, sessionID, cookies[0].Value)

	cart := decodeCart(t, rec)
	assert.Equal(t, sessionID, cart.SessionID)
	assert.True(t, cart.Empty)
}

func TestCartFlow_FreeGiftLifecycle(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	cart := decodeCart(t, rec)
	assert.Equal(t, int64(500), cart.Subtotal)
	assert.Equal(t, int64(500), cart.AmountToFreeGift)
	assert.True(t, cart.ShowProgress)

	rec = do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	cart = decodeCart(t, rec)
	assert.True(t, cart.FreeGiftApplied)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, int64(1000), cart.Lines[0].LineTotal)
	assert.True(t, cart.Lines[1].IsFreeGift)
	assert.Equal(t, int64(0), cart.Lines[1].Price)

	rec = do(t, h, "PUT", "/api/v1/cart/items/5", "s1", quantityBody(3))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "PUT", "/api/v1/cart/items/1", "s1", quantityBody(1))
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeCart(t, rec)
	assert.False(t, cart.FreeGiftApplied)
	assert.Equal(t, int64(500), cart.Subtotal)
	assert.Len(t, cart.Lines, 1)

	rec = do(t, h, "DELETE", "/api/v1/cart/items/1", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).Empty)
}

func TestGetCart_UsesCookie(t *testing.T) {
	h := setupRouter(t)
	do(t, h, "POST", "/api/v1/cart/items", "s-cookie", AddItemRequestDTO{ProductID: 3})

	req := httptest.NewRequest("GET", "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s-cookie"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Equal(t, "s-cookie", cart.SessionID)
	assert.Equal(t, int64(100), cart.Subtotal)
}

func TestClearCart(t *testing.T) {
	h := setupRouter(t)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 2})

	rec := do(t, h, "DELETE", "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, "GET", "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).Empty)
}

func TestCart_MissingSession(t *testing.T) {
	h := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/v1/cart"},
		{"DELETE", "/api/v1/cart"},
		{"POST", "/api/v1/cart/items"},
		{"PUT", "/api/v1/cart/items/1"},
		{"DELETE", "/api/v1/cart/items/1"},
	} {
		rec := do(t, h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "missing_session", resp.Code)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	rec := do(t, setupRouter(t), "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 77})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "product_not_found", resp.Code)
}

func TestAddItem_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/cart/items", bytes.NewBufferString("{nope"))
	req.Header.Set(SessionHeader, "s1")
	rec := httptest.NewRecorder()
	setupRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateQuantity_InvalidProductID(t *testing.T) {
	rec := do(t, setupRouter(t), "PUT", "/api/v1/cart/items/abc", "s1", quantityBody(1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleServiceError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"product", fmt.Errorf("get product 9: %w", catalog.ErrProductNotFound), http.StatusNotFound, "product_not_found"},
		{"overflow", engine.ErrQuantityOverflow, http.StatusBadRequest, "invalid_quantity"},
		{"gift", engine.ErrFreeGiftLocked, http.StatusConflict, "free_gift_locked"},
		{"timeout", fmt.Errorf("load session: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"other", fmt.Errorf("redis down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewCartHandler(serviceMock{err: tc.err}, 5*time.Second, zap.NewNop())
			req := httptest.NewRequest("GET", "/", nil)
			req = req.WithContext(WithSessionID(req.Context(), "s1"))
			rec := httptest.NewRecorder()

			handler.GetCart(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestSessionMiddleware_HeaderWinsOverCookie(t *testing.T) {
	var got string
	h := SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = getSessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(SessionHeader, "from-header")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "from-header", got)
}

func TestUpdateQuantity_MissingQuantityKeepsLine(t *testing.T) {
	h := setupRouter(t)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	for _, body := range []string{`{}`, `{"qty": 3}`, `{"quantity": null}`} {
		req := httptest.NewRequest("PUT", "/api/v1/cart/items/1", bytes.NewBufferString(body))
		req.Header.Set(SessionHeader, "s1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "invalid_request", resp.Code)
	}

	rec := do(t, h, "GET", "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	h := setupRouter(t)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	rec := do(t, h, "PUT", "/api/v1/cart/items/1", "s1", quantityBody(0))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).Empty)
}

func TestUpdateQuantity_OverflowRejected(t *testing.T) {
	h := setupRouter(t)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	rec := do(t, h, "PUT", "/api/v1/cart/items/1", "s1", quantityBody(1<<62))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "GET", "/api/v1/cart", "s1", nil)
	cart := decodeCart(t, rec)
	assert.Equal(t, int64(500), cart.Subtotal)
}

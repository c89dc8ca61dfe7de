package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/payments"
	"bottlestore-service/internal/service"
	"bottlestore-service/internal/transport/http/router"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

const whsec = "whsec_test_secret"

// --- моки ---

type MockTokens struct {
	claims map[string]*service.Claims
}

func (m *MockTokens) SignAccess(ctx context.Context, sub uuid.UUID, role string, ttl time.Duration) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not used")
}

func (m *MockTokens) ParseAndValidateAccess(ctx context.Context, token string) (*service.Claims, error) {
	if c, ok := m.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type MockOrders struct {
	service.OrderService
	CheckoutFunc func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error)
	ListFunc     func(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error)
	CancelFunc   func(ctx context.Context, id uuid.UUID, reason *string) (*models.Order, error)
}

func (m *MockOrders) Checkout(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
	return m.CheckoutFunc(ctx, in, meta)
}

func (m *MockOrders) ListOrders(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error) {
	return m.ListFunc(ctx, f)
}

func (m *MockOrders) CancelOrder(ctx context.Context, id uuid.UUID, reason *string) (*models.Order, error) {
	return m.CancelFunc(ctx, id, reason)
}

type MockCarts struct {
	service.CartService
	AddItemFunc func(ctx context.Context, productID uuid.UUID, qty int, meta service.ClientMeta) (*service.CartView, error)
}

func (m *MockCarts) AddItem(ctx context.Context, productID uuid.UUID, qty int, meta service.ClientMeta) (*service.CartView, error) {
	return m.AddItemFunc(ctx, productID, qty, meta)
}

type MockAddresses struct {
	service.AddressService
	CreateFunc     func(ctx context.Context, in service.AddressInput) (*models.Address, error)
	SetDefaultFunc func(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

func (m *MockAddresses) CreateAddress(ctx context.Context, in service.AddressInput) (*models.Address, error) {
	return m.CreateFunc(ctx, in)
}

func (m *MockAddresses) SetDefaultAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	return m.SetDefaultFunc(ctx, id)
}

type MockEvents struct {
	mu       sync.Mutex
	received []service.WebhookEvent
	outcome  string
	err      error
}

func (m *MockEvents) HandleEvent(ctx context.Context, ev service.WebhookEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, ev)
	return m.outcome, m.err
}

type MockSeen struct {
	keys map[string]bool
}

func (m *MockSeen) SetRateLimit(ctx context.Context, key string, ttl time.Duration) error {
	m.keys[key] = true
	return nil
}

func (m *MockSeen) CheckRateLimit(ctx context.Context, key string) (bool, error) {
	return m.keys[key], nil
}

// --- окружение ---

type env struct {
	engine *gin.Engine
	orders *MockOrders
	carts  *MockCarts
	addrs  *MockAddresses
	events *MockEvents
	seen   *MockSeen
	userID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := payments.NewStripeProvider(payments.StripeConfig{APIKey: "sk_test_dummy", WebhookSecret: whsec})
	require.NoError(t, err)

	e := &env{
		orders: &MockOrders{},
		carts:  &MockCarts{},
		addrs:  &MockAddresses{},
		events: &MockEvents{outcome: service.OutcomeApplied},
		seen:   &MockSeen{keys: map[string]bool{}},
		userID: uuid.New(),
	}
	tokens := &MockTokens{claims: map[string]*service.Claims{
		"customer": {UserID: e.userID, Role: models.RoleCustomer},
		"admin":    {UserID: uuid.New(), Role: models.RoleAdmin},
	}}

	e.engine = router.Router(router.Deps{
		Orders:    e.orders,
		Carts:     e.carts,
		Addresses: e.addrs,
		Tokens:    tokens,
		Verifier:  verifier,
		Events:    e.events,
		Seen:      e.seen,
	}, zap.NewNop())
	return e
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.BaseError {
	t.Helper()
	var be dto.BaseError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &be))
	return be
}

func checkoutBody() map[string]any {
	return map[string]any{
		"deliveryAddress": map[string]any{
			"street": "12 Bree St", "city": "Cape Town", "postalCode": "8001",
		},
	}
}

// --- тесты ---

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/ready", "", nil).Code)
}

func TestCheckoutHandler(t *testing.T) {
	t.Run("returns only payment data", func(t *testing.T) {
		e := newEnv(t)
		orderID := uuid.New()
		e.orders.CheckoutFunc = func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
			uid, ok := service.UserIDFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, e.userID, uid)
			assert.Empty(t, in.Items)
			assert.Equal(t, "Cape Town", in.DeliveryAddress.City)
			require.NotNil(t, meta.IP)
			return &service.CheckoutResult{
				Order: &models.Order{
					ID:          orderID,
					OrderNumber: "ORD-1-ABCDEF",
					TotalAmount: decimal.RequireFromString("229.98"),
				},
				ClientSecret: "pi_1_secret_2",
			}, nil
		}

		w := e.do(http.MethodPost, "/api/v1/orders/checkout", "customer", checkoutBody())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "pi_1_secret_2", resp["clientSecret"])
		assert.Equal(t, orderID.String(), resp["orderId"])
		assert.Equal(t, "229.98", resp["totalAmount"])
		assert.Len(t, resp, 4)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		e := newEnv(t)
		w := e.do(http.MethodPost, "/api/v1/orders/checkout", "", checkoutBody())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("explicit items required on create", func(t *testing.T) {
		e := newEnv(t)
		w := e.do(http.MethodPost, "/api/v1/orders", "customer", checkoutBody())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.CodeValidation, decodeError(t, w).Code)
	})

	t.Run("line error names the product", func(t *testing.T) {
		e := newEnv(t)
		pid := uuid.New()
		e.orders.CheckoutFunc = func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
			require.Len(t, in.Items, 1)
			return nil, &service.LineError{Line: 0, ProductID: pid, Err: &service.InsufficientStockError{
				ProductID: pid, Name: "Pinotage", Requested: 5, Available: 2,
			}}
		}
		body := checkoutBody()
		body["items"] = []map[string]any{{"productId": pid.String(), "quantity": 5}}

		w := e.do(http.MethodPost, "/api/v1/orders", "customer", body)
		require.Equal(t, http.StatusConflict, w.Code)
		be := decodeError(t, w)
		assert.Equal(t, dto.CodeInsufficientStock, be.Code)
		require.Len(t, be.Fields, 1)
		assert.Equal(t, "items[0]", be.Fields[0].Field)
		assert.Equal(t, pid.String(), be.Fields[0].Tag)
	})

	t.Run("deactivated product", func(t *testing.T) {
		e := newEnv(t)
		pid := uuid.New()
		e.orders.CheckoutFunc = func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
			return nil, &service.LineError{Line: 1, ProductID: pid, Err: service.ErrProductUnavailable}
		}
		w := e.do(http.MethodPost, "/api/v1/orders/checkout", "customer", checkoutBody())
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.CodeProductUnavailable, decodeError(t, w).Code)
	})

	t.Run("saved address id is passed through", func(t *testing.T) {
		e := newEnv(t)
		aid := uuid.New()
		e.orders.CheckoutFunc = func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
			require.NotNil(t, in.AddressID)
			assert.Equal(t, aid, *in.AddressID)
			return nil, service.ErrAddressNotFound
		}
		w := e.do(http.MethodPost, "/api/v1/orders/checkout", "customer", map[string]any{"addressId": aid.String()})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = e.do(http.MethodPost, "/api/v1/orders/checkout", "customer", map[string]any{"addressId": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrAgeVerificationRequired, http.StatusForbidden, dto.CodeAgeVerificationRequired},
		{service.ErrCartEmpty, http.StatusBadRequest, dto.CodeCartEmpty},
		{service.ErrDeliveryUnavailable, http.StatusUnprocessableEntity, dto.CodeDeliveryUnavailable},
		{service.ErrPaymentUnavailable, http.StatusBadGateway, dto.CodePaymentUnavailable},
		{service.ErrTooManyRequests, http.StatusTooManyRequests, dto.CodeRateLimited},
		{service.ErrOrderTotalsMismatch, http.StatusConflict, dto.CodeConflict},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, dto.CodeInternal},
	}
	for _, tc := range cases {
		t.Run("maps "+tc.code, func(t *testing.T) {
			e := newEnv(t)
			e.orders.CheckoutFunc = func(ctx context.Context, in service.CheckoutInput, meta service.ClientMeta) (*service.CheckoutResult, error) {
				return nil, tc.err
			}
			w := e.do(http.MethodPost, "/api/v1/orders/checkout", "customer", checkoutBody())
			assert.Equal(t, tc.status, w.Code)
			be := decodeError(t, w)
			assert.Equal(t, tc.code, be.Code)
			if tc.code == dto.CodeInternal {
				assert.NotContains(t, be.Message, "pq")
			}
		})
	}
}

func TestCancelOrderHandler(t *testing.T) {
	e := newEnv(t)
	id := uuid.New()
	e.orders.CancelFunc = func(ctx context.Context, got uuid.UUID, reason *string) (*models.Order, error) {
		assert.Equal(t, id, got)
		require.NotNil(t, reason)
		assert.Equal(t, "changed my mind", *reason)
		return nil, service.ErrOrderNotCancellable
	}
	w := e.do(http.MethodPost, "/api/v1/orders/"+id.String()+"/cancel", "customer", map[string]any{"reason": "changed my mind"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.CodeOrderNotCancellable, decodeError(t, w).Code)

	w = e.do(http.MethodPost, "/api/v1/orders/not-a-uuid/cancel", "customer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	e.orders.ListFunc = func(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error) {
		require.NotNil(t, f.ReconciliationRequired)
		assert.True(t, *f.ReconciliationRequired)
		return []models.Order{}, 0, nil
	}

	w := e.do(http.MethodGet, "/api/v1/admin/orders?reconciliation_required=true", "customer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, "/api/v1/admin/orders?reconciliation_required=true", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/v1/admin/orders?status=lost", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartAddHandler(t *testing.T) {
	e := newEnv(t)
	pid := uuid.New()
	e.carts.AddItemFunc = func(ctx context.Context, productID uuid.UUID, qty int, meta service.ClientMeta) (*service.CartView, error) {
		assert.Equal(t, pid, productID)
		assert.Equal(t, 2, qty)
		return &service.CartView{
			CartID: uuid.New(),
			Lines: []service.CartLine{{
				ItemID: uuid.New(), ProductID: pid, Name: "Pinotage",
				UnitPrice: decimal.RequireFromString("89.99"), Quantity: 2,
				LineTotal: decimal.RequireFromString("179.98"), Available: true, InStock: 10,
			}},
			ItemCount: 2,
			Subtotal:  decimal.RequireFromString("179.98"),
		}, nil
	}

	w := e.do(http.MethodPost, "/api/v1/cart/items", "customer", map[string]any{"productId": pid.String(), "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cart dto.CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	assert.Equal(t, "179.98", cart.Subtotal)
	assert.Equal(t, 2, cart.ItemCount)

	w = e.do(http.MethodPost, "/api/v1/cart/items", "customer", map[string]any{"productId": "nope", "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func signedRequest(t *testing.T, payload, secret string) *http.Request {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(sp.Payload))
	req.Header.Set("Stripe-Signature", sp.Header)
	return req
}

const succeeded = `{
  "id": "evt_100",
  "object": "event",
  "type": "payment_intent.succeeded",
  "data": {"object": {"id": "pi_100", "object": "payment_intent", "amount": 22998, "currency": "zar",
    "metadata": {"orderId": "0b7a7c56-3c59-4a2c-8f0a-5b0cf5f0a001"}}}
}`

func TestWebhookHandler(t *testing.T) {
	t.Run("valid event is dispatched once", func(t *testing.T) {
		e := newEnv(t)

		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, signedRequest(t, succeeded, whsec))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"received":true}`, w.Body.String())

		require.Len(t, e.events.received, 1)
		ev := e.events.received[0]
		assert.Equal(t, "evt_100", ev.ID)
		assert.Equal(t, service.WebhookPaymentSucceeded, ev.Type)
		assert.Equal(t, "pi_100", ev.PaymentIntentID)
		assert.True(t, e.seen.keys["webhook:evt_100"])

		// повтор отсекается кэшем
		w = httptest.NewRecorder()
		e.engine.ServeHTTP(w, signedRequest(t, succeeded, whsec))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, e.events.received, 1)
	})

	t.Run("bad signature changes nothing", func(t *testing.T) {
		e := newEnv(t)
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, signedRequest(t, succeeded, "whsec_other"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.CodeInvalidSignature, decodeError(t, w).Code)
		assert.Empty(t, e.events.received)
	})

	t.Run("missing header", func(t *testing.T) {
		e := newEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader([]byte(succeeded)))
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, e.events.received)
	})

	t.Run("unknown order is acknowledged but not cached", func(t *testing.T) {
		e := newEnv(t)
		e.events.outcome = service.OutcomeUnknownOrder
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, signedRequest(t, succeeded, whsec))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, e.seen.keys["webhook:evt_100"])
	})

	t.Run("internal error asks for redelivery", func(t *testing.T) {
		e := newEnv(t)
		e.events.err = errors.New("deadlock detected")
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, signedRequest(t, succeeded, whsec))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.False(t, e.seen.keys["webhook:evt_100"])
	})
}

func TestAddressHandlers(t *testing.T) {
	e := newEnv(t)
	home := models.AddressHome
	e.addrs.CreateFunc = func(ctx context.Context, in service.AddressInput) (*models.Address, error) {
		require.NotNil(t, in.AddressType)
		assert.Equal(t, home, *in.AddressType)
		assert.True(t, in.IsDefault)
		if in.Province != "Gauteng" {
			return nil, service.ErrInvalidAddress
		}
		return &models.Address{ID: uuid.New(), AddressType: in.AddressType, Street: in.Street, City: in.City, Province: in.Province, PostalCode: in.PostalCode, IsDefault: true}, nil
	}

	body := map[string]any{
		"addressType":   "home",
		"streetAddress": "45 Jan Smuts Ave",
		"city":          "Johannesburg",
		"province":      "Gauteng",
		"postalCode":    "2196",
		"isDefault":     true,
	}
	w := e.do(http.MethodPost, "/api/v1/addresses", "customer", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.AddressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "45 Jan Smuts Ave", resp.Street)
	assert.True(t, resp.IsDefault)

	body["province"] = "Atlantis"
	w = e.do(http.MethodPost, "/api/v1/addresses", "customer", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.CodeValidation, decodeError(t, w).Code)

	body["addressType"] = "castle"
	w = e.do(http.MethodPost, "/api/v1/addresses", "customer", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/v1/addresses", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.addrs.SetDefaultFunc = func(ctx context.Context, id uuid.UUID) (*models.Address, error) {
		return nil, service.ErrAddressNotFound
	}
	w = e.do(http.MethodPut, "/api/v1/addresses/"+uuid.NewString()+"/set-default", "customer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

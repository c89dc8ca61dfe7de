package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bottlestore-service/internal/delivery"
	"bottlestore-service/internal/migrate"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/platform/testutil"
	"bottlestore-service/internal/repository"
	"bottlestore-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MockPaymentProcessor
type MockPaymentProcessor struct {
	CreatePaymentIntentFunc func(ctx context.Context, req service.PaymentIntentRequest) (service.PaymentIntent, error)
	CancelPaymentIntentFunc func(ctx context.Context, intentID string) error

	mu        sync.Mutex
	Requests  []service.PaymentIntentRequest
	Cancelled []string
}

func (m *MockPaymentProcessor) CreatePaymentIntent(ctx context.Context, req service.PaymentIntentRequest) (service.PaymentIntent, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, req)
	}
	return service.PaymentIntent{
		ID:           fmt.Sprintf("pi_test_%d_%s", n, req.IdempotencyKey[:8]),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", n),
		Status:       "requires_payment_method",
	}, nil
}

func (m *MockPaymentProcessor) CancelPaymentIntent(ctx context.Context, intentID string) error {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, intentID)
	m.mu.Unlock()
	if m.CancelPaymentIntentFunc != nil {
		return m.CancelPaymentIntentFunc(ctx, intentID)
	}
	return nil
}

// MockEventBus
type MockEventBus struct {
	mu        sync.Mutex
	Paid      []service.OrderPaidEvent
	Cancelled []service.OrderCancelledEvent
	Flagged   []service.ReconciliationRequiredEvent
}

func (m *MockEventBus) PublishOrderPaid(_ context.Context, e service.OrderPaidEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paid = append(m.Paid, e)
	return nil
}

func (m *MockEventBus) PublishOrderCancelled(_ context.Context, e service.OrderCancelledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, e)
	return nil
}

func (m *MockEventBus) PublishReconciliationRequired(_ context.Context, e service.ReconciliationRequiredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flagged = append(m.Flagged, e)
	return nil
}

// MockRateLimiter хранит ключи в памяти без TTL.
type MockRateLimiter struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func (m *MockRateLimiter) SetRateLimit(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]time.Duration{}
	}
	m.keys[key] = ttl
	return nil
}

func (m *MockRateLimiter) CheckRateLimit(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

// MockDeliveryWindow
type MockDeliveryWindow struct {
	CanDeliverFunc        func(t time.Time) delivery.Decision
	NextAvailableDateFunc func(from time.Time) time.Time
}

func (m *MockDeliveryWindow) CanDeliver(t time.Time) delivery.Decision {
	if m.CanDeliverFunc != nil {
		return m.CanDeliverFunc(t)
	}
	return delivery.Decision{Allowed: true}
}

func (m *MockDeliveryWindow) NextAvailableDate(from time.Time) time.Time {
	if m.NextAvailableDateFunc != nil {
		return m.NextAvailableDateFunc(from)
	}
	return from.AddDate(0, 0, 1)
}

type fixture struct {
	repo       *repository.Repository
	ledger     *service.InventoryLedger
	gate       *service.AgeGate
	carts      service.CartService
	addresses  service.AddressService
	catalog    service.CatalogService
	orders     service.OrderService
	reconciler *service.PaymentReconciler
	payments   *MockPaymentProcessor
	events     *MockEventBus
	delivery   *MockDeliveryWindow
}

var seq atomic.Int64

func setupDB(t *testing.T) *repository.Repository {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateStoreDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return repository.New(db)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, service.OrderConfig{
		DeliveryFee: decimal.RequireFromString("50.00"),
		Currency:    "zar",
	})
}

func newFixtureWith(t *testing.T, throttle service.RateLimiter, cfg service.OrderConfig) *fixture {
	t.Helper()
	repo := setupDB(t)
	log := zap.NewNop()

	f := &fixture{
		repo:     repo,
		payments: &MockPaymentProcessor{},
		events:   &MockEventBus{},
		delivery: &MockDeliveryWindow{},
	}
	f.ledger = service.NewInventoryLedger(repo, log)
	f.gate = service.NewAgeGate(log)
	f.carts = service.NewCartService(repo, f.ledger, f.gate, log)
	f.addresses = service.NewAddressService(repo, log)
	f.catalog = service.NewCatalogService(repo, log)
	f.orders = service.NewOrderService(repo, f.ledger, f.gate, f.payments, f.delivery, f.events, throttle, cfg, log)
	f.reconciler = service.NewPaymentReconciler(repo, f.ledger, f.events, log)
	return f
}

func (f *fixture) seedUser(t *testing.T, age int, verified bool) *models.User {
	t.Helper()
	now := time.Now()
	dob := now.AddDate(-age, 0, -1)
	u := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("user%d@example.com", seq.Add(1)),
		PasswordHash: "x",
		FirstName:    "Thandi",
		LastName:     "Nkosi",
		DateOfBirth:  &dob,
		AgeVerified:  verified,
		Role:         models.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.repo.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (f *fixture) seedProduct(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	now := time.Now()
	n := seq.Add(1)
	p := &models.Product{
		ID:                uuid.New(),
		Name:              fmt.Sprintf("Cape Red %d", n),
		Slug:              fmt.Sprintf("cape-red-%d", n),
		Category:          models.CategoryWine,
		Price:             decimal.RequireFromString(price),
		StockQuantity:     stock,
		LowStockThreshold: 10,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := f.repo.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.repo.Products.GetByID(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("get product %s: %v", id, err)
	}
	return p.StockQuantity
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	o, err := f.repo.Orders.GetByID(context.Background(), id)
	if err != nil || o == nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return o
}

func asUser(u *models.User) context.Context {
	ctx := service.WithUserID(context.Background(), u.ID)
	return service.WithRole(ctx, u.Role)
}

func asAdmin() context.Context {
	ctx := service.WithUserID(context.Background(), uuid.New())
	return service.WithRole(ctx, models.RoleAdmin)
}

func testAddress() models.DeliveryAddress {
	return models.DeliveryAddress{
		Street:     "12 Long Street",
		City:       "Cape Town",
		Province:   "Western Cape",
		PostalCode: "8001",
	}
}

// checkoutItems оформляет заказ по явному списку позиций.
func (f *fixture) checkoutItems(t *testing.T, u *models.User, items ...service.CreateOrderItem) *service.CheckoutResult {
	t.Helper()
	res, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
		Items:           items,
		DeliveryAddress: testAddress(),
	}, service.ClientMeta{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return res
}

func succeeded(eventID string, o *models.Order) service.WebhookEvent {
	return service.WebhookEvent{
		ID:              eventID,
		Type:            service.WebhookPaymentSucceeded,
		PaymentIntentID: *o.PaymentIntentID,
		Metadata:        map[string]string{"orderId": o.ID.String()},
	}
}

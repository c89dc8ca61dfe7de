package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bottlestore-service/internal/delivery"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("prices snapshot and creates pending order with intent", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "89.99", 10)

		res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 2})
		o := f.order(t, res.Order.ID)

		assert.Equal(t, models.OrderStatusPending, o.Status)
		assert.Equal(t, models.PaymentStatusPending, o.PaymentStatus)
		assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("179.98")), o.Subtotal.String())
		assert.True(t, o.DeliveryFee.Equal(decimal.RequireFromString("50.00")))
		assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("229.98")), o.TotalAmount.String())
		assert.True(t, o.VATAmount.Equal(decimal.RequireFromString("30.00")), o.VATAmount.String())
		assert.Equal(t, "ZAR", o.Currency)
		assert.True(t, o.AgeVerifiedAtCheckout)
		require.NotNil(t, o.PaymentIntentID)
		assert.NotEmpty(t, res.ClientSecret)
		assert.Regexp(t, `^ORD-\d+-[0-9A-Z]{6}$`, o.OrderNumber)

		require.Len(t, o.Items, 1)
		assert.Equal(t, p.Name, o.Items[0].ProductName)
		assert.True(t, o.Items[0].Subtotal.Equal(decimal.RequireFromString("179.98")))

		// склад при создании заказа не трогается
		assert.Equal(t, 10, f.stockOf(t, p.ID))

		last := f.payments.Requests[len(f.payments.Requests)-1]
		assert.Equal(t, int64(22998), last.AmountMinor)
		assert.Equal(t, "zar", last.Currency)
		assert.Equal(t, o.ID.String(), last.Metadata["orderId"])
		assert.Equal(t, o.OrderNumber, last.Metadata["orderNumber"])
		assert.Equal(t, u.ID.String(), last.Metadata["userId"])
		assert.Equal(t, o.ID.String(), last.IdempotencyKey)

		logs, err := f.repo.AgeVerifications.ListByOrder(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.True(t, logs[0].Verified)
	})

	t.Run("insufficient stock rejects without order", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "120.00", 3)

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 5}},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrInsufficientStock)

		var lineErr *service.LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, p.ID, lineErr.ProductID)
		var stockErr *service.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 3, stockErr.Available)

		_, total, err := f.orders.ListOrders(asUser(u), service.ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("deactivated product fails whole checkout", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		ok := f.seedProduct(t, "50.00", 5)
		gone := f.seedProduct(t, "60.00", 5)
		require.NoError(t, f.repo.Products.UpdateFields(ctx, gone.ID, map[string]any{"is_active": false}))

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items: []service.CreateOrderItem{
				{ProductID: ok.ID, Quantity: 1},
				{ProductID: gone.ID, Quantity: 1},
			},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrProductUnavailable)
		var lineErr *service.LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, 1, lineErr.Line)

		_, total, err := f.orders.ListOrders(asUser(u), service.ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("empty cart", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{DeliveryAddress: testAddress()}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrCartEmpty)
	})

	t.Run("checkout from cart", func(t *testing.T) {
		u := f.seedUser(t, 25, true)
		p := f.seedProduct(t, "45.50", 10)
		_, err := f.carts.AddItem(asUser(u), p.ID, 2, service.ClientMeta{})
		require.NoError(t, err)
		_, err = f.carts.AddItem(asUser(u), p.ID, 1, service.ClientMeta{})
		require.NoError(t, err)

		res, err := f.orders.Checkout(asUser(u), service.CheckoutInput{DeliveryAddress: testAddress()}, service.ClientMeta{})
		require.NoError(t, err)
		require.Len(t, res.Order.Items, 1)
		assert.Equal(t, 3, res.Order.Items[0].Quantity)
		assert.True(t, res.Order.Subtotal.Equal(decimal.RequireFromString("136.50")))

		// корзина очищается только после подтверждения оплаты
		view, err := f.carts.GetCart(asUser(u))
		require.NoError(t, err)
		assert.Len(t, view.Lines, 1)
	})

	t.Run("under age rejected even with stale flag", func(t *testing.T) {
		u := f.seedUser(t, 17, true)
		p := f.seedProduct(t, "30.00", 5)

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrAgeVerificationRequired)

		logs, err := f.repo.AgeVerifications.ListByUser(ctx, u.ID, 10)
		require.NoError(t, err)
		require.NotEmpty(t, logs)
		assert.False(t, logs[0].Verified)
	})

	t.Run("unverified adult rejected", func(t *testing.T) {
		u := f.seedUser(t, 40, false)
		p := f.seedProduct(t, "30.00", 5)
		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrAgeVerificationRequired)
	})

	t.Run("missing address", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "30.00", 5)
		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items: []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrDeliveryAddressRequired)
	})

	t.Run("delivery window rejects date", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "30.00", 5)
		f.delivery.CanDeliverFunc = func(time.Time) delivery.Decision {
			return delivery.Decision{Allowed: false, Reason: "no deliveries on Sundays"}
		}
		defer func() { f.delivery.CanDeliverFunc = nil }()

		when := time.Now().Add(72 * time.Hour)
		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			DeliveryAddress: testAddress(),
			DeliveryDate:    &when,
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrDeliveryUnavailable)
		assert.Contains(t, err.Error(), "Sundays")

		past := time.Now().Add(-time.Hour)
		f.delivery.CanDeliverFunc = nil
		_, err = f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			DeliveryAddress: testAddress(),
			DeliveryDate:    &past,
		}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrDeliveryUnavailable)
	})

	t.Run("processor failure leaves order unpayable", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "30.00", 5)
		f.payments.CreatePaymentIntentFunc = func(context.Context, service.PaymentIntentRequest) (service.PaymentIntent, error) {
			return service.PaymentIntent{}, errors.New("connection refused")
		}
		defer func() { f.payments.CreatePaymentIntentFunc = nil }()

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrPaymentUnavailable)

		list, total, err := f.orders.ListOrders(asUser(u), service.ListFilter{})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, models.OrderStatusCancelled, list[0].Status)
		assert.Equal(t, models.PaymentStatusFailed, list[0].PaymentStatus)
		assert.Nil(t, list[0].PaymentIntentID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.orders.Checkout(ctx, service.CheckoutInput{}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestCheckoutThrottle(t *testing.T) {
	f := newFixtureWith(t, &MockRateLimiter{}, service.OrderConfig{
		DeliveryFee:    decimal.Zero,
		Currency:       "zar",
		SubmitThrottle: 5 * time.Second,
	})
	u := f.seedUser(t, 30, true)
	p := f.seedProduct(t, "10.00", 10)

	f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})

	_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
		Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		DeliveryAddress: testAddress(),
	}, service.ClientMeta{})
	assert.ErrorIs(t, err, service.ErrTooManyRequests)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("paid order returns reserved stock", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "99.00", 10)
		res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 4})

		_, err := f.reconciler.HandleEvent(ctx, succeeded("evt_cancel_paid", f.order(t, res.Order.ID)))
		require.NoError(t, err)
		require.Equal(t, 6, f.stockOf(t, p.ID))

		reason := "changed my mind"
		o, err := f.orders.CancelOrder(asUser(u), res.Order.ID, &reason)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, o.Status)
		assert.False(t, o.StockReserved)
		require.NotNil(t, o.CancelReason)
		assert.Equal(t, reason, *o.CancelReason)
		assert.Equal(t, 10, f.stockOf(t, p.ID))

		last := f.events.Cancelled[len(f.events.Cancelled)-1]
		assert.True(t, last.StockReleased)
	})

	t.Run("unpaid order leaves stock and cancels intent", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "99.00", 10)
		res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 2})

		o, err := f.orders.CancelOrder(asUser(u), res.Order.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, o.Status)
		assert.Equal(t, 10, f.stockOf(t, p.ID))
		assert.Contains(t, f.payments.Cancelled, *o.PaymentIntentID)
	})

	t.Run("cannot cancel twice or after shipping", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "99.00", 10)
		res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})
		_, err := f.orders.CancelOrder(asUser(u), res.Order.ID, nil)
		require.NoError(t, err)
		_, err = f.orders.CancelOrder(asUser(u), res.Order.ID, nil)
		assert.ErrorIs(t, err, service.ErrOrderNotCancellable)

		res = f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})
		_, err = f.orders.UpdateStatus(asAdmin(), res.Order.ID, models.OrderStatusShipped, nil)
		require.NoError(t, err)
		_, err = f.orders.CancelOrder(asUser(u), res.Order.ID, nil)
		assert.ErrorIs(t, err, service.ErrOrderNotCancellable)
	})

	t.Run("other customer cannot see or cancel", func(t *testing.T) {
		owner := f.seedUser(t, 30, true)
		other := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "99.00", 10)
		res := f.checkoutItems(t, owner, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})

		_, err := f.orders.CancelOrder(asUser(other), res.Order.ID, nil)
		assert.ErrorIs(t, err, service.ErrOrderNotFound)
		_, err = f.orders.GetOrder(asUser(other), res.Order.ID)
		assert.ErrorIs(t, err, service.ErrOrderNotFound)
	})
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, 30, true)
	p := f.seedProduct(t, "20.00", 10)
	res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})

	_, err := f.orders.UpdateStatus(asUser(u), res.Order.ID, models.OrderStatusShipped, nil)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.orders.UpdateStatus(asAdmin(), res.Order.ID, models.OrderStatus("lost"), nil)
	assert.ErrorIs(t, err, service.ErrInvalidStatus)

	for _, st := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered} {
		o, err := f.orders.UpdateStatus(asAdmin(), res.Order.ID, st, nil)
		require.NoError(t, err)
		assert.Equal(t, st, o.Status)
		// оплата не меняется ручным продвижением
		assert.Equal(t, models.PaymentStatusPending, o.PaymentStatus)
	}

	_, err = f.orders.UpdateStatus(asAdmin(), res.Order.ID, models.OrderStatusProcessing, nil)
	assert.ErrorIs(t, err, service.ErrInvalidStatusTransition)
	assert.Equal(t, 10, f.stockOf(t, p.ID))
}

func TestCheckoutLineErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("product removed by admin fails cart checkout", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		kept := f.seedProduct(t, "70.00", 5)
		removed := f.seedProduct(t, "80.00", 5)
		_, err := f.carts.AddItem(asUser(u), kept.ID, 1, service.ClientMeta{})
		require.NoError(t, err)
		_, err = f.carts.AddItem(asUser(u), removed.ID, 2, service.ClientMeta{})
		require.NoError(t, err)

		require.NoError(t, f.catalog.DeleteProduct(asAdmin(), removed.ID))

		// строка корзины переживает снятие товара с продажи
		view, err := f.carts.GetCart(asUser(u))
		require.NoError(t, err)
		require.Len(t, view.Lines, 2)
		assert.False(t, view.Lines[1].Available)

		_, err = f.orders.Checkout(asUser(u), service.CheckoutInput{DeliveryAddress: testAddress()}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrProductUnavailable)
		var lineErr *service.LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, removed.ID, lineErr.ProductID)
		assert.Equal(t, 1, lineErr.Line)

		_, total, err := f.orders.ListOrders(asUser(u), service.ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)

		p, err := f.repo.Products.GetByID(ctx, removed.ID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.False(t, p.IsActive)
	})

	t.Run("line index points at request position after merging duplicates", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		a := f.seedProduct(t, "20.00", 10)
		b := f.seedProduct(t, "30.00", 1)

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items: []service.CreateOrderItem{
				{ProductID: a.ID, Quantity: 1},
				{ProductID: a.ID, Quantity: 2},
				{ProductID: b.ID, Quantity: 3},
			},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrInsufficientStock)
		var lineErr *service.LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, b.ID, lineErr.ProductID)
		assert.Equal(t, 2, lineErr.Line)
	})

	t.Run("merged duplicate keeps first position", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		a := f.seedProduct(t, "20.00", 2)
		b := f.seedProduct(t, "30.00", 10)

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items: []service.CreateOrderItem{
				{ProductID: b.ID, Quantity: 1},
				{ProductID: a.ID, Quantity: 2},
				{ProductID: a.ID, Quantity: 1},
			},
			DeliveryAddress: testAddress(),
		}, service.ClientMeta{})
		require.ErrorIs(t, err, service.ErrInsufficientStock)
		var lineErr *service.LineError
		require.True(t, errors.As(err, &lineErr))
		assert.Equal(t, a.ID, lineErr.ProductID)
		assert.Equal(t, 1, lineErr.Line)
	})
}

func TestCheckoutThrottleAfterRejection(t *testing.T) {
	f := newFixtureWith(t, &MockRateLimiter{}, service.OrderConfig{
		DeliveryFee:    decimal.Zero,
		Currency:       "zar",
		SubmitThrottle: 5 * time.Second,
	})
	u := f.seedUser(t, 30, true)
	p := f.seedProduct(t, "10.00", 2)

	_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
		Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 5}},
		DeliveryAddress: testAddress(),
	}, service.ClientMeta{})
	require.ErrorIs(t, err, service.ErrInsufficientStock)

	// исправленная корзина сразу проходит
	f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})

	_, err = f.orders.Checkout(asUser(u), service.CheckoutInput{
		Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		DeliveryAddress: testAddress(),
	}, service.ClientMeta{})
	assert.ErrorIs(t, err, service.ErrTooManyRequests)
}

func TestCheckoutDeliveryHint(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, 30, true)
	p := f.seedProduct(t, "30.00", 5)

	next := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	f.delivery.CanDeliverFunc = func(time.Time) delivery.Decision {
		return delivery.Decision{Allowed: false, Reason: "public holiday"}
	}
	f.delivery.NextAvailableDateFunc = func(time.Time) time.Time { return next }

	when := time.Now().Add(48 * time.Hour)
	_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
		Items:           []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		DeliveryAddress: testAddress(),
		DeliveryDate:    &when,
	}, service.ClientMeta{})
	require.ErrorIs(t, err, service.ErrDeliveryUnavailable)
	assert.Contains(t, err.Error(), "public holiday")
	assert.Contains(t, err.Error(), "next available delivery date 2030-03-04")
}

func TestCheckoutSavedAddress(t *testing.T) {
	f := newFixture(t)

	newAddress := func(t *testing.T, u *models.User, street string, def bool) *models.Address {
		t.Helper()
		a, err := f.addresses.CreateAddress(asUser(u), service.AddressInput{
			Street:     street,
			City:       "Johannesburg",
			Province:   "Gauteng",
			PostalCode: "2001",
			IsDefault:  def,
		})
		require.NoError(t, err)
		return a
	}

	t.Run("address id is snapshotted into order", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "40.00", 5)
		a := newAddress(t, u, "7 Fox Street", false)

		res, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:     []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			AddressID: &a.ID,
		}, service.ClientMeta{})
		require.NoError(t, err)

		street := "99 Main Road"
		_, err = f.addresses.UpdateAddress(asUser(u), a.ID, service.AddressPatch{Street: &street})
		require.NoError(t, err)

		o := f.order(t, res.Order.ID)
		assert.Equal(t, "7 Fox Street", o.DeliveryAddress.Street)
		assert.Equal(t, "Gauteng", o.DeliveryAddress.Province)
	})

	t.Run("default address used when body has none", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "40.00", 5)
		newAddress(t, u, "1 Other Lane", false)
		newAddress(t, u, "22 Jan Smuts Avenue", true)

		res, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items: []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		}, service.ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, "22 Jan Smuts Avenue", f.order(t, res.Order.ID).DeliveryAddress.Street)
	})

	t.Run("explicit address wins over default", func(t *testing.T) {
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "40.00", 5)
		newAddress(t, u, "22 Jan Smuts Avenue", true)

		res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})
		assert.Equal(t, testAddress().Street, f.order(t, res.Order.ID).DeliveryAddress.Street)
	})

	t.Run("another customer's address is not found", func(t *testing.T) {
		owner := f.seedUser(t, 30, true)
		u := f.seedUser(t, 30, true)
		p := f.seedProduct(t, "40.00", 5)
		a := newAddress(t, owner, "7 Fox Street", true)

		_, err := f.orders.Checkout(asUser(u), service.CheckoutInput{
			Items:     []service.CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			AddressID: &a.ID,
		}, service.ClientMeta{})
		assert.ErrorIs(t, err, service.ErrAddressNotFound)
	})
}

func TestResolveReconciliationTotalsMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, 30, true)
	p := f.seedProduct(t, "100.00", 5)

	res := f.checkoutItems(t, u, service.CreateOrderItem{ProductID: p.ID, Quantity: 1})
	o := f.order(t, res.Order.ID)
	subtotal := decimal.RequireFromString("90.00")
	require.NoError(t, f.repo.Orders.UpdateFields(ctx, o.ID, map[string]any{
		"subtotal":                subtotal,
		"total_amount":            subtotal.Add(o.DeliveryFee),
		"reconciliation_required": true,
	}))

	_, err := f.orders.ResolveReconciliation(asAdmin(), o.ID, "checked")
	require.ErrorIs(t, err, service.ErrOrderTotalsMismatch)
	assert.Contains(t, err.Error(), "items 100.00")

	assert.True(t, f.order(t, o.ID).ReconciliationRequired)
}

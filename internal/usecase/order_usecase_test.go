package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/events"
	"rentalengine/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_TotalsSnapshotAndReservation(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	e.addProduct(t, productP2, 3)
	ctx := context.Background()

	first := item(productP1, 2, "1000.50", "1 week")
	first.DesiredDeliveryDate = date(2026, 5, 10)
	second := item(productP2, 1, "500", "3 days")
	second.DesiredDeliveryDate = date(2026, 5, 7)

	in := orderInput(first, second)
	in.Discount = decimal.RequireFromString("100")
	in.DeliveryFee = decimal.RequireFromString("50.25")

	out, err := e.orders.CreateOrder(ctx, customerA, in)
	require.NoError(t, err)

	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, customerA, out.CustomerID)
	assert.Regexp(t, `^ORD-\d+-[0-9A-F]{8}$`, out.OrderNumber)
	assert.True(t, out.Subtotal.Equal(decimal.RequireFromString("2501.00")), "subtotal=%s", out.Subtotal)
	assert.True(t, out.Total.Equal(decimal.RequireFromString("2451.25")), "total=%s", out.Total)
	assert.True(t, out.Total.Equal(out.Subtotal.Sub(out.Discount).Add(out.DeliveryFee)))

	//最も早い希望配送日
	require.NotNil(t, out.EstimatedDeliveryDate)
	assert.Equal(t, *date(2026, 5, 7), *out.EstimatedDeliveryDate)

	require.Len(t, out.Items, 2)
	assert.Equal(t, "Product P1", out.Items[0].ProductName)
	assert.True(t, out.Items[0].Subtotal.Equal(decimal.RequireFromString("2001.00")))
	assert.Equal(t, "not_returned", out.Items[0].ReturnStatus)
	assert.Nil(t, out.Items[0].ExpectedReturnDate)
	assert.Nil(t, out.Payment)

	assert.Equal(t, int64(3), e.stock(t, productP1))
	assert.Equal(t, int64(2), e.stock(t, productP2))

	adjs := e.store.Adjustments()
	require.Len(t, adjs, 2)
	assert.Equal(t, int64(-2), adjs[0].Delta)
	assert.Equal(t, model.AdjustmentReasonOrderReserve, adjs[0].Reason)
	assert.Equal(t, out.ID, adjs[0].OrderID)

	assert.Equal(t, []events.Type{events.OrderCreated}, e.pub.Types())
}

func TestCreateOrder_PaymentDefaults(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)

	in := orderInput(item(productP1, 1, "300", "1 week"))
	in.DeliveryFee = decimal.RequireFromString("20")
	in.Payment = &usecase.PaymentInput{CardLast4: "4242"}

	out, err := e.orders.CreateOrder(context.Background(), customerA, in)
	require.NoError(t, err)

	require.NotNil(t, out.Payment)
	assert.Equal(t, model.DefaultPaymentMethod, out.Payment.PaymentMethod)
	assert.Equal(t, "pending", out.Payment.PaymentStatus)
	assert.Equal(t, "4242", out.Payment.CardLast4)
	assert.True(t, out.Payment.Amount.Equal(out.Total))
	assert.Nil(t, out.EstimatedDeliveryDate)
}

func TestCreateOrder_PublishesStockDepleted(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 2)

	_, err := e.orders.CreateOrder(context.Background(), customerA, orderInput(item(productP1, 2, "10", "1 week")))
	require.NoError(t, err)

	assert.Equal(t, []events.Type{events.OrderCreated, events.StockDepleted}, e.pub.Types())
	assert.Equal(t, productP1, e.pub.events[1].ProductID)
}

func TestCreateOrder_InsufficientStockRollsBackEarlierReservations(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	e.addProduct(t, productP2, 0)
	ctx := context.Background()

	_, err := e.orders.CreateOrder(ctx, customerA, orderInput(
		item(productP1, 2, "10", "1 week"),
		item(productP2, 1, "10", "1 week"),
	))
	ue := assertKind(t, err, usecase.KindInsufficientStock)
	assert.Equal(t, productP2, ue.ProductID)
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
	assertErrContains(t, err, "Product P2")

	//先に引き当てた分も戻っている
	assert.Equal(t, int64(5), e.stock(t, productP1))
	assert.Equal(t, int64(0), e.stock(t, productP2))
	assert.Empty(t, e.store.Adjustments())

	orders, err := e.orders.ListOrdersForCustomer(ctx, customerA)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, e.pub.Types())
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 1)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.orders.CreateOrder(context.Background(), customerA, orderInput(item(productP1, 1, "10", "1 week")))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case assert.ErrorIs(t, err, usecase.ErrInsufficientStock):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, insufficient)
	assert.Equal(t, int64(0), e.stock(t, productP1))
}

func TestCreateOrder_ProductAndCustomerLookups(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.store.AddProduct(model.Product{ID: "inactive", Name: "Old", Stock: 10, IsActive: false}))
	ctx := context.Background()

	_, err := e.orders.CreateOrder(ctx, customerA, orderInput(item("missing", 1, "10", "1 week")))
	ue := assertKind(t, err, usecase.KindNotFound)
	assert.Equal(t, "missing", ue.ProductID)

	_, err = e.orders.CreateOrder(ctx, customerA, orderInput(item("inactive", 1, "10", "1 week")))
	ue = assertKind(t, err, usecase.KindNotFound)
	assert.Equal(t, "inactive", ue.ProductID)
	n, _ := e.store.Ledger().Get("inactive")
	assert.Equal(t, int64(10), n)

	_, err = e.orders.CreateOrder(ctx, "33333333-3333-3333-3333-333333333333", orderInput(item("inactive", 1, "10", "1 week")))
	assertKind(t, err, usecase.KindNotFound)
	assertErrContains(t, err, "customer not found")
}

func TestCreateOrder_Validation(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)

	tests := []struct {
		name   string
		mutate func(in *usecase.CreateOrderInput)
		want   string
	}{
		{name: "no items", mutate: func(in *usecase.CreateOrderInput) { in.Items = nil }, want: "at least one item"},
		{name: "zero quantity", mutate: func(in *usecase.CreateOrderInput) { in.Items[0].Quantity = 0 }, want: "quantity"},
		{name: "negative price", mutate: func(in *usecase.CreateOrderInput) { in.Items[0].Price = decimal.NewFromInt(-1) }, want: "price"},
		{name: "long rental period", mutate: func(in *usecase.CreateOrderInput) {
			in.Items[0].RentalPeriod = "2000000000000000000000000000000000000000000000000000 weeks"
		}, want: "rental period"},
		{name: "negative discount", mutate: func(in *usecase.CreateOrderInput) { in.Discount = decimal.NewFromInt(-1) }, want: "discount"},
		{name: "negative fee", mutate: func(in *usecase.CreateOrderInput) { in.DeliveryFee = decimal.NewFromInt(-1) }, want: "delivery fee"},
		{name: "discount above subtotal", mutate: func(in *usecase.CreateOrderInput) { in.Discount = decimal.NewFromInt(1000) }, want: "total"},
		{name: "missing city", mutate: func(in *usecase.CreateOrderInput) { in.DeliveryAddress.City = " " }, want: "delivery address"},
		{name: "missing phone", mutate: func(in *usecase.CreateOrderInput) { in.Contact.Phone = "" }, want: "contact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := orderInput(item(productP1, 1, "10", "1 week"))
			tt.mutate(&in)

			_, err := e.orders.CreateOrder(context.Background(), customerA, in)
			assertKind(t, err, usecase.KindValidation)
			assertErrContains(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(5), e.stock(t, productP1))
}

func TestCreateOrder_IdempotencyKeyReturnsSameOrder(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	ctx := context.Background()

	in := orderInput(item(productP1, 2, "10", "1 week"))
	in.IdempotencyKey = "checkout-1"

	first, err := e.orders.CreateOrder(ctx, customerA, in)
	require.NoError(t, err)
	second, err := e.orders.CreateOrder(ctx, customerA, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, int64(3), e.stock(t, productP1))
	assert.Len(t, e.pub.Types(), 1)
}

func TestHasOverdueReturns_CalendarBoundary(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	ctx := context.Background()

	out, err := e.orders.CreateOrder(ctx, customerA, orderInput(item(productP1, 1, "10", "3 days")))
	require.NoError(t, err)

	//配送前は対象外
	e.clock.Set(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	overdue, err := e.orders.HasOverdueReturns(ctx, customerA)
	require.NoError(t, err)
	assert.False(t, overdue)

	e.clock.Set(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	delivered, err := e.admin.UpdateStatus(ctx, adminID, out.ID, "delivered")
	require.NoError(t, err)
	require.NotNil(t, delivered.Items[0].ExpectedReturnDate)
	assert.Equal(t, *date(2026, 5, 4), *delivered.Items[0].ExpectedReturnDate)

	//返却予定日当日はまだ延滞ではない
	e.clock.Set(time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC))
	overdue, err = e.orders.HasOverdueReturns(ctx, customerA)
	require.NoError(t, err)
	assert.False(t, overdue)

	e.clock.Set(time.Date(2026, 5, 5, 0, 30, 0, 0, time.UTC))
	overdue, err = e.orders.HasOverdueReturns(ctx, customerA)
	require.NoError(t, err)
	assert.True(t, overdue)

	_, err = e.orders.CreateOrder(ctx, customerA, orderInput(item(productP1, 1, "10", "3 days")))
	ue := assertKind(t, err, usecase.KindOverdueReturns)
	assert.True(t, ue.HasOverdueReturns)
	assert.Equal(t, int64(4), e.stock(t, productP1))

	//他の顧客には影響しない
	overdue, err = e.orders.HasOverdueReturns(ctx, customerB)
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestHasOverdueReturns_ReturnedItemsIgnored(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	ctx := context.Background()

	out, err := e.orders.CreateOrder(ctx, customerA, orderInput(item(productP1, 1, "10", "1 day")))
	require.NoError(t, err)
	_, err = e.admin.UpdateStatus(ctx, adminID, out.ID, "delivered")
	require.NoError(t, err)
	_, err = e.returns.AdjudicateReturn(ctx, adminID, out.ID, productP1, true)
	require.NoError(t, err)

	e.clock.Set(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	overdue, err := e.orders.HasOverdueReturns(ctx, customerA)
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestOrderQueries(t *testing.T) {
	e := newEngine(t)
	e.addProduct(t, productP1, 5)
	ctx := context.Background()

	older, err := e.orders.CreateOrder(ctx, customerA, orderInput(item(productP1, 1, "10", "1 week")))
	require.NoError(t, err)
	e.clock.Set(e.clock.Now().Add(time.Minute))
	newer, err := e.orders.CreateOrder(ctx, customerA, orderInput(item(productP1, 1, "10", "1 week")))
	require.NoError(t, err)

	got, err := e.orders.GetOrder(ctx, customerA, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.OrderNumber, got.OrderNumber)

	//他人の注文は見えない
	_, err = e.orders.GetOrder(ctx, customerB, older.ID)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
	_, err = e.orders.GetOrder(ctx, customerA, "nope")
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	byNumber, err := e.orders.GetOrderByNumber(ctx, customerA, newer.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, byNumber.ID)
	_, err = e.orders.GetOrderByNumber(ctx, customerB, newer.OrderNumber)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	list, err := e.orders.ListOrdersForCustomer(ctx, customerA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	empty, err := e.orders.ListOrdersForCustomer(ctx, customerB)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/events"
	"rentalengine/internal/infra/memory"
	"rentalengine/internal/usecase"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// recordingPublisher は送ったイベントを覚えておく
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

const (
	customerA = "11111111-1111-1111-1111-111111111111"
	customerB = "22222222-2222-2222-2222-222222222222"
	accountA  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	productP1 = "p1"
	productP2 = "p2"
	adminID   = "admin-1"
)

// engine はメモリストア上で組んだusecase一式
type engine struct {
	store   *memory.Store
	clock   *fixedClock
	pub     *recordingPublisher
	orders  *usecase.OrderUsecase
	admin   *usecase.AdminOrderUsecase
	returns *usecase.ReturnUsecase
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	e, err := buildEngine()
	require.NoError(t, err)
	return e
}

func buildEngine() (*engine, error) {
	store, err := memory.NewStore()
	if err != nil {
		return nil, err
	}
	if err := store.AddCustomer(model.Customer{ID: customerA, Email: "a@example.com"}); err != nil {
		return nil, err
	}
	if err := store.AddCustomer(model.Customer{ID: customerB, Email: "b@example.com"}); err != nil {
		return nil, err
	}

	clock := &fixedClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	obs := usecase.Observability{Publisher: pub}
	tm := memory.NewTxManager(store)

	return &engine{
		store:   store,
		clock:   clock,
		pub:     pub,
		orders:  usecase.NewOrderUsecase(tm, store.Customers(), uuidGen{}, clock, obs),
		admin:   usecase.NewAdminOrderUsecase(tm, clock, obs),
		returns: usecase.NewReturnUsecase(tm, clock, obs),
	}, nil
}

func (e *engine) addProduct(t *testing.T, id string, stock int64) {
	t.Helper()
	require.NoError(t, e.store.AddProduct(model.Product{
		ID:        id,
		AccountID: accountA,
		Name:      "Product " + strings.ToUpper(id),
		Brand:     "Brand",
		Stock:     stock,
		IsActive:  true,
	}))
}

func (e *engine) stock(t *testing.T, id string) int64 {
	t.Helper()
	n, err := e.store.Ledger().Get(id)
	require.NoError(t, err)
	return n
}

func item(productID string, qty int64, price string, period string) usecase.CreateOrderItemInput {
	return usecase.CreateOrderItemInput{
		ProductID:    productID,
		Size:         "M",
		Color:        "black",
		RentalPeriod: period,
		Quantity:     qty,
		Price:        decimal.RequireFromString(price),
	}
}

func orderInput(items ...usecase.CreateOrderItemInput) usecase.CreateOrderInput {
	return usecase.CreateOrderInput{
		Items:       items,
		Discount:    decimal.Zero,
		DeliveryFee: decimal.Zero,
		DeliveryAddress: model.DeliveryAddress{
			Line1:      "1-2-3 Shibuya",
			City:       "Shibuya",
			State:      "Tokyo",
			PostalCode: "150-0002",
			Country:    "JP",
		},
		Contact: model.ContactInfo{Email: "a@example.com", Phone: "090-0000-0000"},
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func assertKind(t *testing.T, err error, kind usecase.ErrorKind) *usecase.Error {
	t.Helper()
	require.Error(t, err)
	ue, ok := usecase.AsError(err)
	require.True(t, ok, "err=%v is not a usecase error", err)
	assert.Equal(t, kind, ue.Kind, "err=%v", err)
	return ue
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

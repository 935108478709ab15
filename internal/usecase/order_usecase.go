package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/domain/rental"
	"rentalengine/internal/events"
	repo "rentalengine/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	customers repo.CustomerRepository
	ids       IDGenerator
	clock     Clock
	periods   *rental.Calculator
	obs       Observability
}

func NewOrderUsecase(tx repo.TransactionManager, customers repo.CustomerRepository, ids IDGenerator, clock Clock, obs Observability) *OrderUsecase {
	obs = obs.withDefaults()
	return &OrderUsecase{
		tx:        tx,
		customers: customers,
		ids:       ids,
		clock:     clock,
		periods:   rental.NewCalculator(obs.Log),
		obs:       obs,
	}
}

type CreateOrderItemInput struct {
	ProductID            string
	Size                 string
	Color                string
	RentalPeriod         string
	Quantity             int64
	Price                decimal.Decimal
	DesiredDeliveryDate  *time.Time
	NeedsExpressDelivery bool
}

type PaymentInput struct {
	PaymentMethod string
	CardLast4     string
}

type CreateOrderInput struct {
	Items           []CreateOrderItemInput
	Discount        decimal.Decimal
	DeliveryFee     decimal.Decimal
	DeliveryAddress model.DeliveryAddress
	Contact         model.ContactInfo
	//nilなら支払い情報なし
	Payment        *PaymentInput
	IdempotencyKey string
}

// CreateOrder は在庫を引き当てて注文を作る。
// 引当から保存までを1トランザクションで行い、途中で失敗したら引当も戻る
func (u *OrderUsecase) CreateOrder(ctx context.Context, customerID string, in CreateOrderInput) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "OrderUsecase.CreateOrder")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("customer.id", customerID), attribute.Int("order.items", len(in.Items)))

	start := time.Now()

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return OrderOutput{}, validation("customer id is required")
	}
	if err := validateCreateOrder(in); err != nil {
		return OrderOutput{}, err
	}

	//顧客の存在確認
	exists, err := u.customers.Exists(ctx, customerID)
	if err != nil {
		return OrderOutput{}, internal("db error", err)
	}
	if !exists {
		return OrderOutput{}, notFound("customer not found")
	}

	//延滞返却があれば注文させない
	overdue, err := u.HasOverdueReturns(ctx, customerID)
	if err != nil {
		return OrderOutput{}, err
	}
	if overdue {
		u.obs.Log.Info("order rejected: overdue returns", zap.String("customer_id", customerID))
		return OrderOutput{}, overdueReturns()
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	created := false
	var depleted []string

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, customerID, key)
			if err != nil {
				return internal("db error", err)
			}
			if found {
				o, err := loadOrderOutput(ctx, r, existing, u.periods)
				if err != nil {
					return err
				}
				out = o
				return nil
			}
		}

		now := u.clock.Now()
		orderID := u.ids.NewID()

		items := make([]model.OrderItem, 0, len(in.Items))
		subtotal := decimal.Zero
		var estimated *time.Time
		depleted = depleted[:0]

		for i, it := range in.Items {
			//商品スナップショット
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return productNotFound(it.ProductID)
			}
			if err != nil {
				return internal("db error", err)
			}
			if !p.IsActive {
				return productNotFound(it.ProductID)
			}

			//在庫減算（足りないなら false）
			ok, err := r.Inventory().Reserve(ctx, it.ProductID, it.Quantity)
			if err != nil {
				u.obs.Metrics.Reservation("error")
				return internal("db error", err)
			}
			if !ok {
				u.obs.Metrics.Reservation("insufficient")
				return insufficientStock(p.ID, p.Name)
			}
			u.obs.Metrics.Reservation("ok")

			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: it.ProductID,
				OrderID:   orderID,
				ActorID:   customerID,
				Delta:     -it.Quantity,
				Reason:    model.AdjustmentReasonOrderReserve,
				CreatedAt: now,
			}); err != nil {
				return internal("db error", err)
			}

			left, err := r.Inventory().GetStock(ctx, it.ProductID)
			if err != nil {
				return internal("db error", err)
			}
			if left == 0 {
				depleted = append(depleted, it.ProductID)
			}

			lineSubtotal := it.Price.Mul(decimal.NewFromInt(it.Quantity))
			subtotal = subtotal.Add(lineSubtotal)
			estimated = earliest(estimated, it.DesiredDeliveryDate)

			items = append(items, model.OrderItem{
				ID:                   u.ids.NewID(),
				OrderID:              orderID,
				Position:             i,
				ProductID:            it.ProductID,
				ProductName:          p.Name,
				ProductBrand:         p.Brand,
				ProductImageURL:      p.ImageURL,
				Size:                 it.Size,
				Color:                it.Color,
				RentalPeriod:         it.RentalPeriod,
				Quantity:             it.Quantity,
				Price:                it.Price,
				Subtotal:             lineSubtotal,
				DesiredDeliveryDate:  it.DesiredDeliveryDate,
				NeedsExpressDelivery: it.NeedsExpressDelivery,
				ReturnStatus:         model.ReturnStatusNotReturned,
				CreatedAt:            now,
				UpdatedAt:            now,
			})
		}

		order := model.Order{
			ID:                    orderID,
			OrderNumber:           u.newOrderNumber(now),
			CustomerID:            customerID,
			Status:                model.OrderStatusPending,
			Subtotal:              subtotal,
			Discount:              in.Discount,
			DeliveryFee:           in.DeliveryFee,
			Total:                 model.OrderTotal(subtotal, in.Discount, in.DeliveryFee),
			DeliveryAddress:       in.DeliveryAddress,
			Contact:               in.Contact,
			EstimatedDeliveryDate: estimated,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		// 注文作成
		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrDuplicateIdempotencyKey) {
				return err
			}
			return internal("db error", err)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return internal("db error", err)
		}

		var payment *model.Payment
		if in.Payment != nil {
			method := strings.TrimSpace(in.Payment.PaymentMethod)
			if method == "" {
				method = model.DefaultPaymentMethod
			}
			payment = &model.Payment{
				ID:            u.ids.NewID(),
				OrderID:       orderID,
				PaymentMethod: method,
				PaymentStatus: model.PaymentStatusPending,
				CardLast4:     in.Payment.CardLast4,
				Amount:        order.Total,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := r.Payments().Create(ctx, *payment); err != nil {
				return internal("db error", err)
			}
		}

		out = toOrderOutput(order, items, payment, u.periods)
		created = true
		return nil
	})

	if errors.Is(err, repo.ErrDuplicateIdempotencyKey) {
		//同時に同じキーで作られた。先にできた注文を返す
		return u.findByIdempotencyKey(ctx, customerID, key)
	}
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}

	if created {
		u.obs.Metrics.OrderCreated(float64(time.Since(start).Milliseconds()))
		u.afterCreate(ctx, out, depleted)
	}
	span.SetAttributes(attribute.String("order.id", out.ID))
	return out, nil
}

// コミット後のイベント送信。失敗してもログだけ
func (u *OrderUsecase) afterCreate(ctx context.Context, out OrderOutput, depleted []string) {
	u.obs.Log.Info("order created",
		zap.String("order_id", out.ID),
		zap.String("order_number", out.OrderNumber),
		zap.String("customer_id", out.CustomerID),
		zap.String("total", out.Total.StringFixed(2)),
	)

	now := u.clock.Now()
	u.publish(ctx, events.Event{
		Type:        events.OrderCreated,
		OrderID:     out.ID,
		OrderNumber: out.OrderNumber,
		CustomerID:  out.CustomerID,
		Status:      out.Status,
		OccurredAt:  now,
	})
	for _, productID := range depleted {
		u.publish(ctx, events.Event{
			Type:        events.StockDepleted,
			OrderID:     out.ID,
			OrderNumber: out.OrderNumber,
			ProductID:   productID,
			OccurredAt:  now,
		})
	}
}

func (u *OrderUsecase) publish(ctx context.Context, e events.Event) {
	if err := u.obs.Publisher.Publish(ctx, e); err != nil {
		u.obs.Log.Warn("publish event failed", zap.String("type", string(e.Type)), zap.String("order_id", e.OrderID), zap.Error(err))
	}
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, customerID, key string) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, customerID, key)
		if err != nil {
			return internal("db error", err)
		}
		if !found {
			return internal("idempotency conflict", repo.ErrDuplicateIdempotencyKey)
		}
		o, err := loadOrderOutput(ctx, r, existing, u.periods)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}
	return out, nil
}

// ORD-<unix millis>-<8桁の大文字英数>
func (u *OrderUsecase) newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(u.ids.NewID(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

// HasOverdueReturns は配送済み注文に返却期限切れの明細があるか
func (u *OrderUsecase) HasOverdueReturns(ctx context.Context, customerID string) (bool, error) {
	overdue := false
	now := u.clock.Now()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByCustomerID(ctx, customerID)
		if err != nil {
			return internal("db error", err)
		}
		for _, o := range orders {
			if o.DeliveredAt == nil {
				continue
			}
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return internal("db error", err)
			}
			for _, it := range items {
				if it.ReturnStatus == model.ReturnStatusReturned {
					continue
				}
				if u.periods.IsOverdue(*o.DeliveredAt, it.RentalPeriod, now) {
					overdue = true
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, wrapInternal(err)
	}
	return overdue, nil
}

// GetOrder は顧客本人の注文だけ返す（他人の注文は存在しない扱い）
func (u *OrderUsecase) GetOrder(ctx context.Context, customerID string, orderID string) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if o.CustomerID != customerID {
			return notFound("order not found")
		}
		out, err = loadOrderOutput(ctx, r, o, u.periods)
		return err
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}
	return out, nil
}

func (u *OrderUsecase) GetOrderByNumber(ctx context.Context, customerID string, orderNumber string) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByNumber(ctx, orderNumber)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("order not found")
		}
		if err != nil {
			return internal("db error", err)
		}
		if o.CustomerID != customerID {
			return notFound("order not found")
		}
		out, err = loadOrderOutput(ctx, r, o, u.periods)
		return err
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}
	return out, nil
}

// 新しい順
func (u *OrderUsecase) ListOrdersForCustomer(ctx context.Context, customerID string) ([]OrderOutput, error) {
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByCustomerID(ctx, customerID)
		if err != nil {
			return internal("db error", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			out, err := loadOrderOutput(ctx, r, o, u.periods)
			if err != nil {
				return err
			}
			outs = append(outs, out)
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, wrapInternal(err)
	}
	return outs, nil
}

// order_items.rental_periodの列幅
const maxRentalPeriodLen = 50

func validateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return validation("order must have at least one item")
	}

	subtotal := decimal.Zero
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return validation("product id is required")
		}
		if it.Quantity < 1 {
			return validation("quantity must be at least 1")
		}
		if it.Price.IsNegative() {
			return validation("price must not be negative")
		}
		if len(it.RentalPeriod) > maxRentalPeriodLen {
			return validation("rental period is too long")
		}
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	if in.Discount.IsNegative() {
		return validation("discount must not be negative")
	}
	if in.DeliveryFee.IsNegative() {
		return validation("delivery fee must not be negative")
	}
	if model.OrderTotal(subtotal, in.Discount, in.DeliveryFee).IsNegative() {
		return validation("total must not be negative")
	}

	a := in.DeliveryAddress
	if strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.State) == "" ||
		strings.TrimSpace(a.PostalCode) == "" ||
		strings.TrimSpace(a.Country) == "" {
		return validation("delivery address is incomplete")
	}
	if strings.TrimSpace(in.Contact.Email) == "" || strings.TrimSpace(in.Contact.Phone) == "" {
		return validation("contact email and phone are required")
	}

	if len(strings.TrimSpace(in.IdempotencyKey)) > 255 {
		return validation("invalid idempotency_key")
	}
	if in.Payment != nil && len(in.Payment.CardLast4) > 4 {
		return validation("card_last4 must be at most 4 characters")
	}
	return nil
}

// 早いほうの日付（nilは無視）
func earliest(cur *time.Time, next *time.Time) *time.Time {
	if next == nil {
		return cur
	}
	if cur == nil || next.Before(*cur) {
		t := *next
		return &t
	}
	return cur
}

package usecase

import (
	"context"
	"errors"
	"time"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/domain/rental"
	repo "rentalengine/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderItemOutput struct {
	ID                   string          `json:"id"`
	ProductID            string          `json:"product_id"`
	ProductName          string          `json:"product_name"`
	ProductBrand         string          `json:"product_brand"`
	ProductImageURL      string          `json:"product_image_url"`
	Size                 string          `json:"size"`
	Color                string          `json:"color"`
	RentalPeriod         string          `json:"rental_period"`
	Quantity             int64           `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DesiredDeliveryDate  *time.Time      `json:"desired_delivery_date"`
	NeedsExpressDelivery bool            `json:"needs_express_delivery"`
	ReturnDate           *time.Time      `json:"return_date"`
	ReturnCondition      *string         `json:"return_condition"`
	ReturnStatus         string          `json:"return_status"`
	//配送済みのときだけ
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
}

type PaymentOutput struct {
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CardLast4     string          `json:"card_last4"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paid_at"`
}

type OrderOutput struct {
	ID                    string                `json:"id"`
	OrderNumber           string                `json:"order_number"`
	CustomerID            string                `json:"customer_id"`
	Status                string                `json:"status"`
	Subtotal              decimal.Decimal       `json:"subtotal"`
	Discount              decimal.Decimal       `json:"discount"`
	DeliveryFee           decimal.Decimal       `json:"delivery_fee"`
	Total                 decimal.Decimal       `json:"total"`
	DeliveryAddress       model.DeliveryAddress `json:"delivery_address"`
	Contact               model.ContactInfo     `json:"contact"`
	EstimatedDeliveryDate *time.Time            `json:"estimated_delivery_date"`
	ShippedAt             *time.Time            `json:"shipped_at"`
	DeliveredAt           *time.Time            `json:"delivered_at"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	Items                 []OrderItemOutput     `json:"items"`
	Payment               *PaymentOutput        `json:"payment"`
}

func toOrderOutput(o model.Order, items []model.OrderItem, p *model.Payment, periods *rental.Calculator) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		item := OrderItemOutput{
			ID:                   it.ID,
			ProductID:            it.ProductID,
			ProductName:          it.ProductName,
			ProductBrand:         it.ProductBrand,
			ProductImageURL:      it.ProductImageURL,
			Size:                 it.Size,
			Color:                it.Color,
			RentalPeriod:         it.RentalPeriod,
			Quantity:             it.Quantity,
			Price:                it.Price,
			Subtotal:             it.Subtotal,
			DesiredDeliveryDate:  it.DesiredDeliveryDate,
			NeedsExpressDelivery: it.NeedsExpressDelivery,
			ReturnDate:           it.ReturnDate,
			ReturnStatus:         string(it.ReturnStatus),
		}
		if it.ReturnCondition != nil {
			c := string(*it.ReturnCondition)
			item.ReturnCondition = &c
		}
		if o.DeliveredAt != nil {
			d := periods.ExpectedReturnDate(*o.DeliveredAt, it.RentalPeriod)
			item.ExpectedReturnDate = &d
		}
		outItems = append(outItems, item)
	}

	out := OrderOutput{
		ID:                    o.ID,
		OrderNumber:           o.OrderNumber,
		CustomerID:            o.CustomerID,
		Status:                string(o.Status),
		Subtotal:              o.Subtotal,
		Discount:              o.Discount,
		DeliveryFee:           o.DeliveryFee,
		Total:                 o.Total,
		DeliveryAddress:       o.DeliveryAddress,
		Contact:               o.Contact,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		ShippedAt:             o.ShippedAt,
		DeliveredAt:           o.DeliveredAt,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Items:                 outItems,
	}
	if p != nil {
		out.Payment = &PaymentOutput{
			PaymentMethod: p.PaymentMethod,
			PaymentStatus: string(p.PaymentStatus),
			CardLast4:     p.CardLast4,
			Amount:        p.Amount,
			PaidAt:        p.PaidAt,
		}
	}
	return out
}

// loadOrderOutput は明細と支払いを読み直して出力を組み立てる
func loadOrderOutput(ctx context.Context, r repo.TxRepos, o model.Order, periods *rental.Calculator) (OrderOutput, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, internal("db error", err)
	}

	payment, err := findPayment(ctx, r, o.ID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o, items, payment, periods), nil
}

// 支払いがなければnil
func findPayment(ctx context.Context, r repo.TxRepos, orderID string) (*model.Payment, error) {
	p, err := r.Payments().FindByOrderID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal("db error", err)
	}
	return &p, nil
}

// findOrder は注文を取得する（なければNotFound）
func findOrder(ctx context.Context, r repo.TxRepos, orderID string) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	return orderOrNotFound(o, err)
}

// lockOrder は注文を行ロック付きで取得する。
// 状態更新と返却はこれで同じ注文ごとに直列になる
func lockOrder(ctx context.Context, r repo.TxRepos, orderID string) (model.Order, error) {
	o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
	return orderOrNotFound(o, err)
}

func orderOrNotFound(o model.Order, err error) (model.Order, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFound("order not found")
	}
	if err != nil {
		return model.Order{}, internal("db error", err)
	}
	return o, nil
}

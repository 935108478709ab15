package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 未知の文字列はエラー
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending,
		OrderStatusPaid,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusReturned,
		OrderStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("invalid order status %q", s)
	}
}

// 配送先（注文時点のスナップショット）
type DeliveryAddress struct {
	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	State      string `gorm:"type:varchar(255);not null" json:"state"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	Country    string `gorm:"type:varchar(100);not null" json:"country"`
}

// 連絡先（注文時点のスナップショット）
type ContactInfo struct {
	Email string `gorm:"type:varchar(255);not null" json:"email"`
	Phone string `gorm:"type:varchar(30);not null" json:"phone"`
}

type Order struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_number"`
	CustomerID  string      `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	DeliveryFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"delivery_fee"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	DeliveryAddress DeliveryAddress `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	Contact         ContactInfo     `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`

	//同じキーなら同じ注文を返す（顧客ごとに一意）
	IdempotencyKey *string `gorm:"type:varchar(255)" json:"-"`

	EstimatedDeliveryDate *time.Time `gorm:"type:date" json:"estimated_delivery_date"`
	ShippedAt             *time.Time `json:"shipped_at"`
	DeliveredAt           *time.Time `json:"delivered_at"`
	CreatedAt             time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"not null" json:"updated_at"`
}

// total = subtotal - discount + deliveryFee
func OrderTotal(subtotal, discount, deliveryFee decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(deliveryFee)
}

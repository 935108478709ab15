package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReturnStatus string

const (
	ReturnStatusNotReturned     ReturnStatus = "not_returned"
	ReturnStatusReturnSubmitted ReturnStatus = "return_submitted"
	ReturnStatusReturned        ReturnStatus = "returned"
)

func ParseReturnStatus(s string) (ReturnStatus, error) {
	switch st := ReturnStatus(s); st {
	case ReturnStatusNotReturned, ReturnStatusReturnSubmitted, ReturnStatusReturned:
		return st, nil
	default:
		return "", fmt.Errorf("invalid return status %q", s)
	}
}

type ReturnCondition string

const (
	ReturnConditionExcellent ReturnCondition = "excellent"
	ReturnConditionGood      ReturnCondition = "good"
	ReturnConditionFair      ReturnCondition = "fair"
	ReturnConditionPoor      ReturnCondition = "poor"
	ReturnConditionDamaged   ReturnCondition = "damaged"
)

func ParseReturnCondition(s string) (ReturnCondition, error) {
	switch c := ReturnCondition(s); c {
	case ReturnConditionExcellent,
		ReturnConditionGood,
		ReturnConditionFair,
		ReturnConditionPoor,
		ReturnConditionDamaged:
		return c, nil
	default:
		return "", fmt.Errorf("invalid return condition %q", s)
	}
}

// 注文明細。注文へはIDだけで参照する
type OrderItem struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   string `gorm:"type:uuid;not null;index" json:"order_id"`
	Position  int    `gorm:"not null" json:"position"`
	ProductID string `gorm:"type:uuid;not null;index" json:"product_id"`

	//商品スナップショット（後から商品が変わっても履歴は変えない）
	ProductName     string `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductBrand    string `gorm:"type:varchar(255)" json:"product_brand"`
	ProductImageURL string `gorm:"type:text" json:"product_image_url"`

	Size         string          `gorm:"type:varchar(50)" json:"size"`
	Color        string          `gorm:"type:varchar(50)" json:"color"`
	RentalPeriod string          `gorm:"type:varchar(50)" json:"rental_period"`
	Quantity     int64           `gorm:"not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Subtotal     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`

	DesiredDeliveryDate  *time.Time `gorm:"type:date" json:"desired_delivery_date"`
	NeedsExpressDelivery bool       `gorm:"not null;default:false" json:"needs_express_delivery"`

	//返却トラッキング
	ReturnDate      *time.Time       `json:"return_date"`
	ReturnCondition *ReturnCondition `gorm:"type:varchar(20)" json:"return_condition"`
	ReturnStatus    ReturnStatus     `gorm:"type:varchar(20);not null;default:'not_returned'" json:"return_status"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// 全明細がreturnedか。明細なしはfalse
func AllItemsReturned(items []OrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.ReturnStatus != ReturnStatusReturned {
			return false
		}
	}
	return true
}

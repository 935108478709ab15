package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	ReturnSubmitted    Type = "return.submitted"
	ReturnAdjudicated  Type = "return.adjudicated"
	StockDepleted      Type = "stock.depleted"
)

// Event はコミット後に外へ流すドメインイベント
type Event struct {
	Type        Type      `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	ProductID   string    `json:"product_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Approved    *bool     `json:"approved,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher はブローカー未設定時に使う
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

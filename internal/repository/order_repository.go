package repository

import (
	"context"
	"time"

	"rentalengine/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page       int
	Limit      int
	Status     model.OrderStatus
	CustomerID *string
	From       *time.Time
	To         *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	//行ロック付き（トランザクション終了まで同じ注文の更新を待たせる）
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (model.Order, error)
	//新しい順
	ListByCustomerID(ctx context.Context, customerID string) ([]model.Order, error)
	//ブランドアカウントの商品を含む注文（新しい順）
	ListByAccountID(ctx context.Context, accountID string) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) error
	//status / shipped_at / delivered_at / updated_at だけ更新
	SaveStatus(ctx context.Context, order model.Order) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, customerID string, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}

package repository

import (
	"context"

	"rentalengine/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error
	//position順
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
	//返却関連の列だけ更新
	SaveReturn(ctx context.Context, item model.OrderItem) error
}

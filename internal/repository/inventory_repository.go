package repository

import (
	"context"

	"rentalengine/internal/domain/model"
)

// 在庫台帳
type InventoryRepository interface {
	GetStock(ctx context.Context, productID string) (int64, error)

	// 在庫が足りるときだけ減算（足りなければ false）
	Reserve(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（返却承認など）
	Release(ctx context.Context, productID string, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}

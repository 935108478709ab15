package repository

import (
	"context"
	"errors"

	"rentalengine/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// カタログ（商品スナップショットの取得だけ）
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
}

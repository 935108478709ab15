package repository

import (
	"context"

	"rentalengine/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) error
	//なければErrNotFound
	FindByOrderID(ctx context.Context, orderID string) (model.Payment, error)
	Update(ctx context.Context, p model.Payment) error
}

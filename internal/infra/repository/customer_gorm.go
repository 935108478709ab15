package repository

import (
	"context"

	"rentalengine/internal/domain/model"
	repo "rentalengine/internal/repository"

	"gorm.io/gorm"
)

type customerGormRepository struct {
	db *gorm.DB
}

func NewCustomerGormRepository(db *gorm.DB) repo.CustomerRepository {
	return &customerGormRepository{db: db}
}

func (r *customerGormRepository) Exists(ctx context.Context, customerID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ?", customerID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

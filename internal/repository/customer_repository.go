package repository

import "context"

// 顧客ディレクトリ
type CustomerRepository interface {
	Exists(ctx context.Context, customerID string) (bool, error)
}

package repository

import (
	"context"
	"errors"
)

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Payments() PaymentRepository
	Inventory() InventoryRepository
	Products() ProductRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返したら在庫の引当も含めて全部戻る。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

// 同じ(顧客, 冪等キー)の注文が先にコミットされた
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

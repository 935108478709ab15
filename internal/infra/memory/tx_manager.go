package memory

import (
	"context"

	repo "rentalengine/internal/repository"
)

type txRepos struct {
	v *view
}

func (r *txRepos) Orders() repo.OrderRepository         { return &orderRepo{v: r.v} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{v: r.v} }
func (r *txRepos) Payments() repo.PaymentRepository     { return &paymentRepo{v: r.v} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return &inventoryRepo{v: r.v} }
func (r *txRepos) Products() repo.ProductRepository     { return &productRepo{v: r.v} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return &auditLogRepo{v: r.v} }

// TxManager はStore上のトランザクション。
// 読み取りはコミット済み＋自分の書き込み、書き込みはcommitでまとめて反映する
type TxManager struct {
	s *Store
}

func NewTxManager(s *Store) *TxManager {
	return &TxManager{s: s}
}

func (tm *TxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTxState()
	//commit/rollbackのあとで外す
	defer tm.s.unlockOrders(tx)
	defer func() {
		if p := recover(); p != nil {
			tm.s.rollback(tx)
			panic(p)
		}
		if err != nil {
			tm.s.rollback(tx)
		}
	}()

	if err = fn(&txRepos{v: &view{s: tm.s, tx: tx}}); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	return tm.s.commit(tx)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rentalengine/internal/domain/model"
	repo "rentalengine/internal/repository"

	memdb "github.com/hashicorp/go-memdb"
)

// Store はプロセス内のストア。
// コミット済みデータはgo-memdb、在庫数はLedgerが持つ
type Store struct {
	db     *memdb.MemDB
	ledger *Ledger
	//注文ごとのロック（FindByIDForUpdateで取りtx終了で外す）
	orderLocks *keyLocks

	mu          sync.Mutex
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("memdb: %w", err)
	}
	return &Store{db: db, ledger: NewLedger(), orderLocks: newKeyLocks()}, nil
}

func (s *Store) Ledger() *Ledger { return s.ledger }

// AddProduct は商品を登録して在庫数を台帳に入れる
func (s *Store) AddProduct(p model.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %s: stock must not be negative", p.ID)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	row := p
	if err := txn.Insert(tableProducts, &row); err != nil {
		return err
	}
	txn.Commit()
	s.ledger.Set(p.ID, p.Stock)
	return nil
}

func (s *Store) AddCustomer(c model.Customer) error {
	if c.ID == "" {
		return fmt.Errorf("customer id is required")
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	row := c
	if err := txn.Insert(tableCustomers, &row); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Adjustments はコミット済みの在庫調整履歴
func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.InventoryAdjustment, len(s.adjustments))
	copy(out, s.adjustments)
	return out
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

// 非トランザクションのrepo（書き込みは即コミット）
func (s *Store) Orders() repo.OrderRepository         { return &orderRepo{v: &view{s: s}} }
func (s *Store) OrderItems() repo.OrderItemRepository { return &orderItemRepo{v: &view{s: s}} }
func (s *Store) Payments() repo.PaymentRepository     { return &paymentRepo{v: &view{s: s}} }
func (s *Store) Inventory() repo.InventoryRepository  { return &inventoryRepo{v: &view{s: s}} }
func (s *Store) Products() repo.ProductRepository     { return &productRepo{v: &view{s: s}} }
func (s *Store) Customers() repo.CustomerRepository   { return &customerRepo{v: &view{s: s}} }

// txState はトランザクション中の未コミット書き込み
type txState struct {
	orders   map[string]model.Order
	items    map[string]model.OrderItem
	payments map[string]model.Payment

	//即時に台帳へ反映した引当（rollbackで戻す）
	reserved []stockMove
	//commit時に台帳へ反映する戻し
	releases []stockMove

	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog

	lockedOrders map[string]bool
}

type stockMove struct {
	productID string
	qty       int64
}

func newTxState() *txState {
	return &txState{
		orders:   map[string]model.Order{},
		items:    map[string]model.OrderItem{},
		payments: map[string]model.Payment{},

		lockedOrders: map[string]bool{},
	}
}

// commit はバッファをまとめて1つのmemdb書き込みtxnで反映する
func (s *Store) commit(tx *txState) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	for _, o := range tx.orders {
		if err := checkOrderUnique(txn, o); err != nil {
			return err
		}
		row := o
		if err := txn.Insert(tableOrders, &row); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	}
	for _, it := range tx.items {
		row := it
		if err := txn.Insert(tableOrderItems, &row); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	for _, p := range tx.payments {
		row := p
		if err := txn.Insert(tablePayments, &row); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	txn.Commit()

	for _, m := range tx.releases {
		//存在は書き込み時に確認済み
		_ = s.ledger.Release(m.productID, m.qty)
	}

	s.mu.Lock()
	for _, a := range tx.adjustments {
		a.ID = int64(len(s.adjustments) + 1)
		s.adjustments = append(s.adjustments, a)
	}
	for _, l := range tx.auditLogs {
		l.ID = int64(len(s.auditLogs) + 1)
		s.auditLogs = append(s.auditLogs, l)
	}
	s.mu.Unlock()
	return nil
}

// rollback は引当済みの在庫を逆順に戻す
func (s *Store) rollback(tx *txState) {
	for i := len(tx.reserved) - 1; i >= 0; i-- {
		m := tx.reserved[i]
		_ = s.ledger.Release(m.productID, m.qty)
	}
	tx.reserved = nil
}

// lockOrder はtx終了まで注文を排他する（同じtxで2回目は何もしない）
func (s *Store) lockOrder(ctx context.Context, tx *txState, orderID string) error {
	if tx.lockedOrders[orderID] {
		return nil
	}
	if err := s.orderLocks.Lock(ctx, orderID); err != nil {
		return err
	}
	tx.lockedOrders[orderID] = true
	return nil
}

func (s *Store) unlockOrders(tx *txState) {
	for id := range tx.lockedOrders {
		s.orderLocks.Unlock(id)
	}
	tx.lockedOrders = map[string]bool{}
}

func checkOrderUnique(txn *memdb.Txn, o model.Order) error {
	raw, err := txn.First(tableOrders, "order_number", o.OrderNumber)
	if err != nil {
		return err
	}
	if raw != nil && raw.(*model.Order).ID != o.ID {
		return fmt.Errorf("duplicate order number %q", o.OrderNumber)
	}
	if o.IdempotencyKey == nil {
		return nil
	}

	it, err := txn.Get(tableOrders, "customer_id", o.CustomerID)
	if err != nil {
		return err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		ex := obj.(*model.Order)
		if ex.ID != o.ID && ex.IdempotencyKey != nil && *ex.IdempotencyKey == *o.IdempotencyKey {
			return repo.ErrDuplicateIdempotencyKey
		}
	}
	return nil
}

// 新しい順（作成日時が同じならID降順）
func sortOrdersNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

var errDuplicatePayment = errors.New("payment already exists for order")

package memory

import (
	"context"
	"errors"
	"sort"

	"rentalengine/internal/domain/model"
	repo "rentalengine/internal/repository"
)

// view はStoreの読み書き口。txがnilなら書き込みは即コミット
type view struct {
	s  *Store
	tx *txState
}

// write はtx内ならバッファへ、tx外なら単独でコミットする
func (v *view) write(fn func(tx *txState) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	tx := newTxState()
	if err := fn(tx); err != nil {
		v.s.rollback(tx)
		return err
	}
	if err := v.s.commit(tx); err != nil {
		v.s.rollback(tx)
		return err
	}
	return nil
}

func (v *view) order(id string) (model.Order, bool, error) {
	if v.tx != nil {
		if o, ok := v.tx.orders[id]; ok {
			return o, true, nil
		}
	}
	txn := v.s.db.Txn(false)
	raw, err := txn.First(tableOrders, "id", id)
	if err != nil {
		return model.Order{}, false, err
	}
	if raw == nil {
		return model.Order{}, false, nil
	}
	return *raw.(*model.Order), true, nil
}

// allOrders はコミット済みに自分の書き込みを重ねた全注文
func (v *view) allOrders() ([]model.Order, error) {
	byID := map[string]model.Order{}
	txn := v.s.db.Txn(false)
	it, err := txn.Get(tableOrders, "id")
	if err != nil {
		return nil, err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		o := obj.(*model.Order)
		byID[o.ID] = *o
	}
	if v.tx != nil {
		for id, o := range v.tx.orders {
			byID[id] = o
		}
	}
	out := make([]model.Order, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	return out, nil
}

func (v *view) itemsOf(orderID string) ([]model.OrderItem, error) {
	byID := map[string]model.OrderItem{}
	txn := v.s.db.Txn(false)
	it, err := txn.Get(tableOrderItems, "order_id", orderID)
	if err != nil {
		return nil, err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		item := obj.(*model.OrderItem)
		byID[item.ID] = *item
	}
	if v.tx != nil {
		for id, item := range v.tx.items {
			if item.OrderID == orderID {
				byID[id] = item
			}
		}
	}
	out := make([]model.OrderItem, 0, len(byID))
	for _, item := range byID {
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type orderRepo struct{ v *view }

func (r *orderRepo) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	o, ok, err := r.v.order(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// tx内なら注文ロックを取ってから読む（ロックはtx終了まで保持）
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	if r.v.tx != nil {
		if err := r.v.s.lockOrder(ctx, r.v.tx, orderID); err != nil {
			return model.Order{}, err
		}
	}
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) FindByNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	if r.v.tx != nil {
		for _, o := range r.v.tx.orders {
			if o.OrderNumber == orderNumber {
				return o, nil
			}
		}
	}
	txn := r.v.s.db.Txn(false)
	raw, err := txn.First(tableOrders, "order_number", orderNumber)
	if err != nil {
		return model.Order{}, err
	}
	if raw == nil {
		return model.Order{}, repo.ErrNotFound
	}
	return *raw.(*model.Order), nil
}

func (r *orderRepo) ListByCustomerID(ctx context.Context, customerID string) ([]model.Order, error) {
	return r.list(func(o model.Order) bool { return o.CustomerID == customerID })
}

func (r *orderRepo) ListByAccountID(ctx context.Context, accountID string) ([]model.Order, error) {
	all, err := r.v.allOrders()
	if err != nil {
		return []model.Order{}, err
	}

	out := []model.Order{}
	products := map[string]string{}
	for _, o := range all {
		items, err := r.v.itemsOf(o.ID)
		if err != nil {
			return []model.Order{}, err
		}
		for _, it := range items {
			acc, ok := products[it.ProductID]
			if !ok {
				p, err := r.v.product(it.ProductID)
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					return []model.Order{}, err
				}
				acc = p.AccountID
				products[it.ProductID] = acc
			}
			if acc != "" && acc == accountID {
				out = append(out, o)
				break
			}
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (r *orderRepo) list(match func(model.Order) bool) ([]model.Order, error) {
	all, err := r.v.allOrders()
	if err != nil {
		return []model.Order{}, err
	}
	out := []model.Order{}
	for _, o := range all {
		if match(o) {
			out = append(out, o)
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (r *orderRepo) Create(ctx context.Context, order model.Order) error {
	return r.v.write(func(tx *txState) error {
		tx.orders[order.ID] = order
		return nil
	})
}

func (r *orderRepo) SaveStatus(ctx context.Context, order model.Order) error {
	cur, ok, err := r.v.order(order.ID)
	if err != nil {
		return err
	}
	if !ok {
		return repo.ErrNotFound
	}
	cur.Status = order.Status
	cur.ShippedAt = order.ShippedAt
	cur.DeliveredAt = order.DeliveredAt
	cur.UpdatedAt = order.UpdatedAt
	return r.v.write(func(tx *txState) error {
		tx.orders[cur.ID] = cur
		return nil
	})
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, customerID string, key string) (model.Order, bool, error) {
	orders, err := r.ListByCustomerID(ctx, customerID)
	if err != nil {
		return model.Order{}, false, err
	}
	for _, o := range orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r *orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	matched, err := r.list(func(o model.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
			return false
		}
		return inRange(o.CreatedAt, f.From, f.To)
	})
	if err != nil {
		return []model.Order{}, 0, err
	}

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return []model.Order{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type orderItemRepo struct{ v *view }

func (r *orderItemRepo) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	return r.v.write(func(tx *txState) error {
		for _, it := range items {
			it.OrderID = orderID
			tx.items[it.ID] = it
		}
		return nil
	})
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	items, err := r.v.itemsOf(orderID)
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *orderItemRepo) SaveReturn(ctx context.Context, item model.OrderItem) error {
	items, err := r.v.itemsOf(item.OrderID)
	if err != nil {
		return err
	}
	for _, cur := range items {
		if cur.ID != item.ID {
			continue
		}
		cur.ReturnDate = item.ReturnDate
		cur.ReturnCondition = item.ReturnCondition
		cur.ReturnStatus = item.ReturnStatus
		cur.UpdatedAt = item.UpdatedAt
		return r.v.write(func(tx *txState) error {
			tx.items[cur.ID] = cur
			return nil
		})
	}
	return repo.ErrNotFound
}

type paymentRepo struct{ v *view }

func (r *paymentRepo) Create(ctx context.Context, p model.Payment) error {
	if _, err := r.FindByOrderID(ctx, p.OrderID); err == nil {
		return errDuplicatePayment
	}
	return r.v.write(func(tx *txState) error {
		tx.payments[p.ID] = p
		return nil
	})
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	if r.v.tx != nil {
		for _, p := range r.v.tx.payments {
			if p.OrderID == orderID {
				return p, nil
			}
		}
	}
	txn := r.v.s.db.Txn(false)
	raw, err := txn.First(tablePayments, "order_id", orderID)
	if err != nil {
		return model.Payment{}, err
	}
	if raw == nil {
		return model.Payment{}, repo.ErrNotFound
	}
	return *raw.(*model.Payment), nil
}

func (r *paymentRepo) Update(ctx context.Context, p model.Payment) error {
	cur, err := r.FindByOrderID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if cur.ID != p.ID {
		return repo.ErrNotFound
	}
	cur.PaymentStatus = p.PaymentStatus
	cur.PaidAt = p.PaidAt
	cur.UpdatedAt = p.UpdatedAt
	return r.v.write(func(tx *txState) error {
		tx.payments[cur.ID] = cur
		return nil
	})
}

type inventoryRepo struct{ v *view }

// GetStock は台帳の値にこのtxの未反映の戻しを足したもの
func (r *inventoryRepo) GetStock(ctx context.Context, productID string) (int64, error) {
	n, err := r.v.s.ledger.Get(productID)
	if err != nil {
		return 0, err
	}
	if r.v.tx != nil {
		for _, m := range r.v.tx.releases {
			if m.productID == productID {
				n += m.qty
			}
		}
	}
	return n, nil
}

func (r *inventoryRepo) Reserve(ctx context.Context, productID string, qty int64) (bool, error) {
	ok, err := r.v.s.ledger.Reserve(productID, qty)
	if err != nil || !ok {
		return ok, err
	}
	if r.v.tx != nil {
		r.v.tx.reserved = append(r.v.tx.reserved, stockMove{productID: productID, qty: qty})
	}
	return true, nil
}

func (r *inventoryRepo) Release(ctx context.Context, productID string, qty int64) error {
	if _, err := r.v.s.ledger.Get(productID); err != nil {
		return err
	}
	return r.v.write(func(tx *txState) error {
		tx.releases = append(tx.releases, stockMove{productID: productID, qty: qty})
		return nil
	})
}

func (r *inventoryRepo) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.v.write(func(tx *txState) error {
		tx.adjustments = append(tx.adjustments, adj)
		return nil
	})
}

func (v *view) product(id string) (model.Product, error) {
	txn := v.s.db.Txn(false)
	raw, err := txn.First(tableProducts, "id", id)
	if err != nil {
		return model.Product{}, err
	}
	if raw == nil {
		return model.Product{}, repo.ErrNotFound
	}
	p := *raw.(*model.Product)
	if p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	if n, err := v.s.ledger.Get(id); err == nil {
		p.Stock = n
	}
	return p, nil
}

type productRepo struct{ v *view }

func (r *productRepo) FindByID(ctx context.Context, id string) (model.Product, error) {
	return r.v.product(id)
}

type customerRepo struct{ v *view }

func (r *customerRepo) Exists(ctx context.Context, customerID string) (bool, error) {
	txn := r.v.s.db.Txn(false)
	raw, err := txn.First(tableCustomers, "id", customerID)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

type auditLogRepo struct{ v *view }

func (r *auditLogRepo) Create(ctx context.Context, log model.AuditLog) error {
	return r.v.write(func(tx *txState) error {
		tx.auditLogs = append(tx.auditLogs, log)
		return nil
	})
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/domain/rental"
	"rentalengine/internal/events"
	repo "rentalengine/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReturnUsecase は返却申請（顧客）と返却判定（管理者）
type ReturnUsecase struct {
	tx      repo.TransactionManager
	clock   Clock
	periods *rental.Calculator
	obs     Observability
}

func NewReturnUsecase(tx repo.TransactionManager, clock Clock, obs Observability) *ReturnUsecase {
	obs = obs.withDefaults()
	return &ReturnUsecase{
		tx:      tx,
		clock:   clock,
		periods: rental.NewCalculator(obs.Log),
		obs:     obs,
	}
}

// SubmitReturn は明細を返却申請中にする。在庫はまだ戻さない
func (u *ReturnUsecase) SubmitReturn(ctx context.Context, customerID, orderID, productID, condition string) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "ReturnUsecase.SubmitReturn")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("product.id", productID))

	cond, err := model.ParseReturnCondition(strings.ToLower(strings.TrimSpace(condition)))
	if err != nil {
		return OrderOutput{}, validation("invalid return condition")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		//他人の注文は存在しない扱い
		if o.CustomerID != customerID {
			return notFound("order not found")
		}

		items, idx, err := findItem(ctx, r, orderID, productID)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		it := items[idx]
		it.ReturnDate = &now
		it.ReturnCondition = &cond
		it.ReturnStatus = model.ReturnStatusReturnSubmitted
		it.UpdatedAt = now
		if err := r.OrderItems().SaveReturn(ctx, it); err != nil {
			return internal("db error", err)
		}
		items[idx] = it

		if err := markReturnedIfComplete(ctx, r, &o, items, now); err != nil {
			return err
		}

		payment, err := findPayment(ctx, r, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items, payment, u.periods)
		return nil
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}

	u.obs.Log.Info("return submitted",
		zap.String("order_id", orderID),
		zap.String("product_id", productID),
		zap.String("condition", string(cond)),
	)
	u.publish(ctx, events.Event{
		Type:        events.ReturnSubmitted,
		OrderID:     out.ID,
		OrderNumber: out.OrderNumber,
		CustomerID:  out.CustomerID,
		ProductID:   productID,
		Status:      out.Status,
		OccurredAt:  u.clock.Now(),
	})
	return out, nil
}

// AdjudicateReturn は返却を承認/却下する。
// 承認なら明細をreturnedにして在庫を戻す、却下ならnot_returnedに戻す（在庫は変えない）。
// 同じ明細への二重判定は呼び出し側で防ぐ
func (u *ReturnUsecase) AdjudicateReturn(ctx context.Context, actorID, orderID, productID string, approved bool) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "ReturnUsecase.AdjudicateReturn")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("product.id", productID),
		attribute.Bool("return.approved", approved),
	)

	if strings.TrimSpace(actorID) == "" {
		return OrderOutput{}, validation("actor id is required")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		items, idx, err := findItem(ctx, r, orderID, productID)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		it := items[idx]
		beforeStatus := it.ReturnStatus

		if approved {
			it.ReturnStatus = model.ReturnStatusReturned

			//在庫戻し
			if err := r.Inventory().Release(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return productNotFound(it.ProductID)
				}
				return internal("db error", err)
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: it.ProductID,
				OrderID:   orderID,
				ActorID:   actorID,
				Delta:     it.Quantity,
				Reason:    model.AdjustmentReasonReturnRelease,
				CreatedAt: now,
			}); err != nil {
				return internal("db error", err)
			}
		} else {
			it.ReturnStatus = model.ReturnStatusNotReturned
		}
		it.UpdatedAt = now

		if err := r.OrderItems().SaveReturn(ctx, it); err != nil {
			return internal("db error", err)
		}
		items[idx] = it

		if err := markReturnedIfComplete(ctx, r, &o, items, now); err != nil {
			return err
		}

		// 監査ログ（ADJUDICATE_RETURN）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionAdjudicateReturn,
			ResourceType: model.AuditResourceOrderItem,
			ResourceID:   it.ID,
			BeforeJSON:   toJSON(map[string]string{"return_status": string(beforeStatus)}),
			AfterJSON:    toJSON(map[string]any{"return_status": string(it.ReturnStatus), "approved": approved}),
			CreatedAt:    now,
		}); err != nil {
			return internal("db error", err)
		}

		payment, err := findPayment(ctx, r, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items, payment, u.periods)
		return nil
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}

	u.obs.Metrics.Adjudicated(approved)
	u.obs.Log.Info("return adjudicated",
		zap.String("order_id", orderID),
		zap.String("product_id", productID),
		zap.String("actor_id", actorID),
		zap.Bool("approved", approved),
	)
	u.publish(ctx, events.Event{
		Type:        events.ReturnAdjudicated,
		OrderID:     out.ID,
		OrderNumber: out.OrderNumber,
		CustomerID:  out.CustomerID,
		ActorID:     actorID,
		ProductID:   productID,
		Status:      out.Status,
		Approved:    &approved,
		OccurredAt:  u.clock.Now(),
	})
	return out, nil
}

func (u *ReturnUsecase) publish(ctx context.Context, e events.Event) {
	if err := u.obs.Publisher.Publish(ctx, e); err != nil {
		u.obs.Log.Warn("publish event failed", zap.String("type", string(e.Type)), zap.String("order_id", e.OrderID), zap.Error(err))
	}
}

// findItem は商品IDで最初に一致した明細を探す
func findItem(ctx context.Context, r repo.TxRepos, orderID, productID string) ([]model.OrderItem, int, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, -1, internal("db error", err)
	}
	for i, it := range items {
		if it.ProductID == productID {
			return items, i, nil
		}
	}
	return nil, -1, notFound("order item not found")
}

// 全明細が返却済みなら注文もreturnedにする
func markReturnedIfComplete(ctx context.Context, r repo.TxRepos, o *model.Order, items []model.OrderItem, now time.Time) error {
	if !model.AllItemsReturned(items) || o.Status == model.OrderStatusReturned {
		return nil
	}
	o.Status = model.OrderStatusReturned
	o.UpdatedAt = now
	if err := r.Orders().SaveStatus(ctx, *o); err != nil {
		return internal("db error", err)
	}
	return nil
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"rentalengine/internal/domain/model"
	"rentalengine/internal/domain/rental"
	"rentalengine/internal/events"
	repo "rentalengine/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	clock   Clock
	periods *rental.Calculator
	obs     Observability
}

func NewAdminOrderUsecase(tx repo.TransactionManager, clock Clock, obs Observability) *AdminOrderUsecase {
	obs = obs.withDefaults()
	return &AdminOrderUsecase{
		tx:      tx,
		clock:   clock,
		periods: rental.NewCalculator(obs.Log),
		obs:     obs,
	}
}

// 注文一覧（絞り込み＋ページング）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, int64, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, 0, validation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, 0, validation("invalid limit")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return []OrderOutput{}, 0, validation("from must be before to")
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return internal("db error", err)
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			out, err := loadOrderOutput(ctx, r, o, u.periods)
			if err != nil {
				return err
			}
			outs = append(outs, out)
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, 0, wrapInternal(err)
	}
	return outs, total, nil
}

func (u *AdminOrderUsecase) GetOrder(ctx context.Context, orderID string) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		out, err = loadOrderOutput(ctx, r, o, u.periods)
		return err
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}
	return out, nil
}

// ブランドアカウントの商品を含む注文（新しい順）
func (u *AdminOrderUsecase) ListOrdersForAccount(ctx context.Context, accountID string) ([]OrderOutput, error) {
	if strings.TrimSpace(accountID) == "" {
		return []OrderOutput{}, validation("account id is required")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByAccountID(ctx, accountID)
		if err != nil {
			return internal("db error", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			out, err := loadOrderOutput(ctx, r, o, u.periods)
			if err != nil {
				return err
			}
			outs = append(outs, out)
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, wrapInternal(err)
	}
	return outs, nil
}

// UpdateStatus は注文ステータスを更新する。
// 遷移順のチェックはしない。paid/shipped/deliveredはそれぞれ付随する日時を入れる
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorID string, orderID string, status string) (out OrderOutput, err error) {
	ctx, span := tracer.Start(ctx, "AdminOrderUsecase.UpdateStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", status))

	if strings.TrimSpace(actorID) == "" {
		return OrderOutput{}, validation("actor id is required")
	}
	newStatus, err := model.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return OrderOutput{}, validation("invalid status")
	}

	var before model.OrderStatus

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := lockOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		// returnedは全明細の返却が済んでいるときだけ
		if newStatus == model.OrderStatusReturned {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return internal("db error", err)
			}
			if !model.AllItemsReturned(items) {
				return validation("cannot mark order returned before all items are returned")
			}
		}

		now := u.clock.Now()
		before = o.Status
		o.Status = newStatus
		o.UpdatedAt = now

		switch newStatus {
		case model.OrderStatusPaid:
			//支払いがあれば支払済みにする
			p, err := r.Payments().FindByOrderID(ctx, orderID)
			switch {
			case err == nil:
				p.PaymentStatus = model.PaymentStatusPaid
				p.PaidAt = &now
				p.UpdatedAt = now
				if err := r.Payments().Update(ctx, p); err != nil {
					return internal("db error", err)
				}
			case errors.Is(err, repo.ErrNotFound):
			default:
				return internal("db error", err)
			}
		case model.OrderStatusShipped:
			o.ShippedAt = &now
		case model.OrderStatusDelivered:
			o.DeliveredAt = &now
		}

		// ステータス更新
		if err := r.Orders().SaveStatus(ctx, o); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("order not found")
			}
			return internal("db error", err)
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   toJSON(map[string]string{"status": string(before)}),
			AfterJSON:    toJSON(map[string]string{"status": string(newStatus)}),
			CreatedAt:    now,
		}); err != nil {
			return internal("db error", err)
		}

		out, err = loadOrderOutput(ctx, r, o, u.periods)
		return err
	})
	if err != nil {
		return OrderOutput{}, wrapInternal(err)
	}

	u.obs.Metrics.StatusUpdated(string(newStatus))
	u.obs.Log.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("actor_id", actorID),
		zap.String("from", string(before)),
		zap.String("to", string(newStatus)),
	)
	if err := u.obs.Publisher.Publish(ctx, events.Event{
		Type:        events.OrderStatusChanged,
		OrderID:     out.ID,
		OrderNumber: out.OrderNumber,
		CustomerID:  out.CustomerID,
		ActorID:     actorID,
		Status:      out.Status,
		OccurredAt:  u.clock.Now(),
	}); err != nil {
		u.obs.Log.Warn("publish event failed", zap.String("type", string(events.OrderStatusChanged)), zap.String("order_id", orderID), zap.Error(err))
	}
	return out, nil
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

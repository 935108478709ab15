package repository

import (
	"context"

	"rentalengine/internal/domain/model"
)

// 監査ログの保存。
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
}

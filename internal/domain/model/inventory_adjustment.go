package model

import "time"

type AdjustmentReason string

const (
	//注文作成時の引当
	AdjustmentReasonOrderReserve AdjustmentReason = "ORDER_RESERVE"
	//返却承認による戻し
	AdjustmentReasonReturnRelease AdjustmentReason = "RETURN_RELEASE"
)

//在庫増減の履歴

type InventoryAdjustment struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string           `gorm:"type:uuid;not null;index" json:"product_id"`
	OrderID   string           `gorm:"type:uuid;index" json:"order_id"`
	ActorID   string           `gorm:"type:varchar(64)" json:"actor_id"`
	Delta     int64            `gorm:"not null" json:"delta"`
	Reason    AdjustmentReason `gorm:"type:varchar(50);not null" json:"reason"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

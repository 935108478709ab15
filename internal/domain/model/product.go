package model

import (
	"time"

	"gorm.io/gorm"
)

// カタログ側の商品。stockは在庫台帳が更新する
type Product struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string         `gorm:"type:uuid;index" json:"account_id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Brand     string         `gorm:"type:varchar(255)" json:"brand"`
	ImageURL  string         `gorm:"type:text" json:"image_url"`
	Stock     int64          `gorm:"not null" json:"stock"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

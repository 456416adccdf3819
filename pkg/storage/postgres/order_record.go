package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is a journal entry for an order the broker accepted.
type OrderRecord struct {
	ID uint `gorm:"primaryKey"`

	OrderID       string `gorm:"type:text;not null;uniqueIndex:idx_order_order_id"`
	ClientOrderID string `gorm:"type:text;not null"`
	Symbol        string `gorm:"type:text;not null;index:idx_order_symbol"`
	Side          string `gorm:"type:varchar(4);not null"`
	Class         string `gorm:"type:varchar(10);not null"`
	TimeInForce   string `gorm:"type:varchar(4);not null"`
	Status        string `gorm:"type:varchar(32)"`

	Qty        decimal.Decimal     `gorm:"type:numeric;not null"`
	EntryRef   decimal.Decimal     `gorm:"type:numeric;not null"`
	StopPrice  decimal.NullDecimal `gorm:"type:numeric"`
	LimitPrice decimal.NullDecimal `gorm:"type:numeric"`

	SubmittedAt time.Time `gorm:"not null;index:idx_order_submitted_at"`
	RecordedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (OrderRecord) TableName() string {
	return "order_record"
}

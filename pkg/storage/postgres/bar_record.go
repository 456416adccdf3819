package postgres

import "time"

// BarRecord represents a closed bar archived in the database.
type BarRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol   string    `gorm:"type:text;not null;index:idx_bar_symbol;index:idx_bar_symbol_interval_start,unique"`
	Interval string    `gorm:"type:varchar(10);not null;index:idx_bar_symbol_interval_start,unique"`
	Start    time.Time `gorm:"not null;index:idx_bar_symbol_interval_start,unique"`

	End time.Time `gorm:"not null"`

	Open  float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`

	Volume float64 `gorm:"type:numeric;not null"`
	Trades int     `gorm:"not null;default:0"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (BarRecord) TableName() string {
	return "bar_record"
}

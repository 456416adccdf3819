package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rsiscalper/internal/memorystore"
	"rsiscalper/pkg/alpaca"

	"gorm.io/gorm/clause"
)

// ErrDuplicate is returned when a row with the same unique key exists.
var ErrDuplicate = errors.New("duplicate record skipped")

func (p *PostgresClient) InsertBar(ctx context.Context, record *BarRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "start"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: bar symbol=%s interval=%s start=%s",
			ErrDuplicate, record.Symbol, record.Interval, record.Start.Format(time.RFC3339))
	}

	return nil
}

// SaveBar archives a closed bar. Re-archiving the same bar is not an error.
func (p *PostgresClient) SaveBar(ctx context.Context, bar memorystore.Bar) error {
	err := p.InsertBar(ctx, ToBarRecord(bar))
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (p *PostgresClient) GetBar(ctx context.Context, symbol, interval string, start time.Time) (*BarRecord, error) {
	var bar BarRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND start = ?", symbol, interval, start).
		First(&bar).Error

	if err != nil {
		return nil, err
	}
	return &bar, nil
}

func (p *PostgresClient) DeleteOldBars(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("start < ?", before).
		Delete(&BarRecord{}).Error
}

// ToBarRecord converts a closed bar into a BarRecord for DB insertion.
func ToBarRecord(b memorystore.Bar) *BarRecord {
	return &BarRecord{
		Symbol:   b.Symbol,
		Interval: alpaca.DBValue(b.Width),
		Start:    b.Start.UTC(),
		End:      b.End().UTC(),
		Open:     b.Open,
		Close:    b.Close,
		High:     b.High,
		Low:      b.Low,
		Volume:   b.Volume,
		Trades:   b.Trades,
	}
}

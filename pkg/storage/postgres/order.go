package postgres

import (
	"context"
	"fmt"
	"time"

	"rsiscalper/internal/dispatch"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// RecordOrder journals an accepted order.
func (p *PostgresClient) RecordOrder(ctx context.Context, spec dispatch.OrderSpec, ack dispatch.OrderAck, submittedAt time.Time) error {
	record := ToOrderRecord(spec, ack, submittedAt)
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", ErrDuplicate, ack.OrderID)
	}
	return nil
}

// ListOrders returns the journal for symbol, newest first.
func (p *PostgresClient) ListOrders(ctx context.Context, symbol string, limit int) ([]OrderRecord, error) {
	var orders []OrderRecord
	q := p.DB.WithContext(ctx).Where("symbol = ?", symbol).Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ToOrderRecord flattens an order and its acknowledgement into a row.
func ToOrderRecord(spec dispatch.OrderSpec, ack dispatch.OrderAck, submittedAt time.Time) *OrderRecord {
	r := &OrderRecord{
		OrderID:       ack.OrderID,
		ClientOrderID: spec.ClientOrderID,
		Symbol:        spec.Symbol,
		Side:          string(spec.Side),
		Class:         string(spec.Class()),
		TimeInForce:   string(spec.TimeInForce),
		Status:        ack.Status,
		Qty:           spec.Quantity,
		EntryRef:      spec.Entry.RefPrice,
		SubmittedAt:   submittedAt.UTC(),
	}
	if spec.StopLoss != nil {
		r.StopPrice = decimal.NewNullDecimal(spec.StopLoss.StopPrice)
	}
	if spec.TakeProfit != nil {
		r.LimitPrice = decimal.NewNullDecimal(spec.TakeProfit.LimitPrice)
	}
	return r
}

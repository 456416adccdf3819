// Package storage defines where closed bars and accepted orders are kept.
package storage

import (
	"context"
	"time"

	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/memorystore"
)

// Store archives closed bars and journals accepted orders. Both the
// Postgres client and MemoryStore satisfy it.
type Store interface {
	SaveBar(ctx context.Context, bar memorystore.Bar) error
	RecordOrder(ctx context.Context, spec dispatch.OrderSpec, ack dispatch.OrderAck, submittedAt time.Time) error
}

// OrderEntry is one journaled order.
type OrderEntry struct {
	Spec        dispatch.OrderSpec
	Ack         dispatch.OrderAck
	SubmittedAt time.Time
}

// Package store persists balance reports as append-only per-peer series.
// Records keep the textual form they were reported in; parsing and
// normalization happen downstream in the loader.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured indicates the backing pool/handle was not initialised.
	ErrNotConfigured = errors.New("store: not configured")
)

// RawRecord is one stored balance report, still in wire form. Timestamp and
// Balance are the exact strings the peer reported; malformed values are kept
// here and dropped later by the loader.
type RawRecord struct {
	PeerID    string
	Timestamp string
	Balance   string
}

// ObservationStore is an append-only collection of named record series.
// Appends for distinct peers never conflict; a reader never observes a
// partially written record.
type ObservationStore interface {
	// Append records one balance report for rec.PeerID.
	Append(ctx context.Context, rec RawRecord) error

	// Series lists the names of all record series currently present.
	// An empty store yields an empty list, not an error.
	Series(ctx context.Context) ([]string, error)

	// ReadSeries returns the records of one series in append order.
	ReadSeries(ctx context.Context, name string) ([]RawRecord, error)
}

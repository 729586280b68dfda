// Package loader turns stored raw records into a merged, timestamp-ordered
// dataset. All tolerance for malformed data lives here: bad records are
// dropped with a warning and never abort a load.
package loader

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pumbayo1/quiltracker/internal/metrics"
	"github.com/pumbayo1/quiltracker/internal/store"
)

// numberPattern matches the first decimal number inside free-form text,
// e.g. the "155.3" in "Unclaimed balance: 155.3 QUIL".
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// timestampLayouts are the accepted report timestamp forms, most specific
// first. Layouts without a zone are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeBalance parses a reported balance. Clean decimals pass through;
// otherwise the first decimal substring is extracted, so unit suffixes and
// label prefixes are tolerated. Text without any digits is an error.
func NormalizeBalance(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("empty balance")
	}
	if value, err := decimal.NewFromString(trimmed); err == nil {
		return value, nil
	}
	match := numberPattern.FindString(trimmed)
	if match == "" {
		return decimal.Decimal{}, fmt.Errorf("no numeric value in %q", raw)
	}
	value, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse extracted balance %q: %w", match, err)
	}
	return value, nil
}

// ParseTimestamp parses a reported timestamp against the accepted layouts.
func ParseTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// Loader reads every series of a store into one merged dataset.
type Loader struct {
	store  store.ObservationStore
	logger zerolog.Logger
}

// New constructs a Loader over the given store.
func New(st store.ObservationStore, logger zerolog.Logger) *Loader {
	return &Loader{
		store:  st,
		logger: logger.With().Str("component", "loader").Logger(),
	}
}

// Load reads all series, normalizes each record, and returns the union
// sorted by timestamp ascending (stable). A store with no series yields an
// empty dataset. Series-level read failures are real I/O errors and abort
// the load; record-level problems only drop the record.
func (l *Loader) Load(ctx context.Context) (metrics.Dataset, error) {
	names, err := l.store.Series(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	dataset := metrics.Dataset{}
	for _, name := range names {
		records, err := l.store.ReadSeries(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read series %s: %w", name, err)
		}
		for _, rec := range records {
			obs, ok := l.parseRecord(name, rec)
			if !ok {
				continue
			}
			dataset = append(dataset, obs)
		}
	}

	dataset.Sort()
	return dataset, nil
}

func (l *Loader) parseRecord(series string, rec store.RawRecord) (metrics.Observation, bool) {
	if rec.PeerID == "" {
		l.logger.Warn().Str("series", series).Str("timestamp", rec.Timestamp).
			Msg("dropping record without peer id")
		return metrics.Observation{}, false
	}

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		l.logger.Warn().Err(err).Str("series", series).Str("peer_id", rec.PeerID).
			Msg("dropping record with bad timestamp")
		return metrics.Observation{}, false
	}

	balance, err := NormalizeBalance(rec.Balance)
	if err != nil {
		l.logger.Warn().Err(err).Str("series", series).Str("peer_id", rec.PeerID).
			Msg("dropping record with bad balance")
		return metrics.Observation{}, false
	}

	return metrics.Observation{PeerID: rec.PeerID, Timestamp: ts, Balance: balance}, true
}

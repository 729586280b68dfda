package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	seriesFilePrefix = "node_balance_"
	seriesFileSuffix = ".csv"
)

var csvHeader = []string{"Date", "Peer ID", "Balance"}

// CSVStore keeps one append-only CSV file per reporting peer under a single
// directory. A new file starts with a header line; every record afterwards
// is written with a single buffered write so concurrent readers never see a
// partial line.
type CSVStore struct {
	dir    string
	logger zerolog.Logger

	// serialises stat+create+append so the header is written exactly once
	mu sync.Mutex
}

// NewCSVStore builds a store rooted at dir. The directory is created lazily
// on first append, so pointing at a non-existent path is not an error.
func NewCSVStore(dir string, logger zerolog.Logger) *CSVStore {
	return &CSVStore{
		dir:    dir,
		logger: logger.With().Str("component", "csv_store").Logger(),
	}
}

// Append writes one record to the peer's series file, creating directory,
// file, and header as needed.
func (s *CSVStore) Append(ctx context.Context, rec RawRecord) error {
	if rec.PeerID == "" {
		return fmt.Errorf("append: peer id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	path := filepath.Join(s.dir, seriesFilePrefix+sanitizePeerID(rec.PeerID)+seriesFileSuffix)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open series file for %s: %w", rec.PeerID, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat series file for %s: %w", rec.PeerID, err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("encode header: %w", err)
		}
	}
	if err := writer.Write([]string{rec.Timestamp, rec.PeerID, rec.Balance}); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	// header (when present) and record land in one write
	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append record for %s: %w", rec.PeerID, err)
	}
	return nil
}

// Series lists every CSV file in the store directory, not just the ones this
// process created, so hand-placed or combined files are picked up too.
func (s *CSVStore) Series(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list store dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), seriesFileSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadSeries parses one series file into raw records, skipping the header
// line. Structurally short rows come back with empty fields and are left for
// the loader to reject.
func (s *CSVStore) ReadSeries(ctx context.Context, name string) ([]RawRecord, error) {
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid series name %q", name)
	}

	file, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open series %s: %w", name, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records := []RawRecord{}
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// a torn or over-quoted line should not sink the series
			s.logger.Warn().Err(err).Str("series", name).Msg("skipping unreadable line")
			continue
		}
		if first {
			first = false
			if isHeaderRow(row) {
				continue
			}
		}
		records = append(records, rowToRecord(row))
	}
	return records, nil
}

func rowToRecord(row []string) RawRecord {
	rec := RawRecord{}
	if len(row) > 0 {
		rec.Timestamp = strings.TrimSpace(row[0])
	}
	if len(row) > 1 {
		rec.PeerID = strings.TrimSpace(row[1])
	}
	if len(row) > 2 {
		rec.Balance = strings.TrimSpace(row[2])
	}
	return rec
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "Date")
}

// sanitizePeerID keeps series file names safe regardless of what a peer
// claims as its ID. The stored records keep the original ID untouched.
func sanitizePeerID(peer string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, peer)
	if mapped == "" {
		return "_"
	}
	return mapped
}

var _ ObservationStore = (*CSVStore)(nil)

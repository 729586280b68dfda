package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/metrics"
	"github.com/pumbayo1/quiltracker/internal/render"
)

// Export writes the merged balance history as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Chart == "" {
		opts.Chart = render.ChartBalances
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	dataset, err := loader.New(st, a.Logger).Load(ctx)
	if err != nil {
		return err
	}
	dataset = filterWindow(dataset, opts.From, opts.To)
	if len(dataset) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	quote := a.newOracle().Quote(ctx)
	report := metrics.Compute(dataset, quote.Price())

	exported := downsample(dataset, opts.MaxPoints)
	sampled := downsample(report.RateSamples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(dataset)).Int("exported", len(exported)).Msg("exporting balance history")

	if opts.CSVPath != "" {
		if err := writeRatesCSV(opts.CSVPath, sampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		thinned := metrics.Report{RateSamples: sampled, Hourly: report.Hourly}
		if err := writeChartPNG(opts.PNGPath, opts.Chart, exported, thinned); err != nil {
			return err
		}
	}

	return nil
}

func filterWindow(dataset metrics.Dataset, from, to *time.Time) metrics.Dataset {
	if from == nil && to == nil {
		return dataset
	}

	filtered := make(metrics.Dataset, 0, len(dataset))
	for _, obs := range dataset {
		if from != nil && obs.Timestamp.Before(*from) {
			continue
		}
		if to != nil && !obs.Timestamp.Before(*to) {
			continue
		}
		filtered = append(filtered, obs)
	}
	return filtered
}

func downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writeRatesCSV(path string, samples []metrics.RateSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "peer_id", "balance", "quil_per_minute", "earnings_per_minute_usd"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Timestamp.UTC().Format(time.RFC3339),
			sample.PeerID,
			sample.Balance.String(),
			sample.QuilPerMinute.String(),
			sample.EarningsPerMinuteUSD.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeChartPNG(path, name string, dataset metrics.Dataset, report metrics.Report) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return render.WritePNG(file, name, dataset, report)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

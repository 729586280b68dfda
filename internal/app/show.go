package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/metrics"
)

// Show prints the most recent balance reports per peer.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
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
	if len(dataset) == 0 {
		fmt.Fprintln(os.Stdout, "no balance reports found")
		return nil
	}

	quote := a.newOracle().Quote(ctx)
	report := metrics.Compute(dataset, quote.Price())

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPeer\tBalance\tQUIL/min\tUSD/min")

	for _, sample := range recentPerPeer(report.RateSamples, opts.Limit) {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			sample.Timestamp.UTC().Format(time.RFC3339),
			sample.PeerID,
			sample.Balance.StringFixed(4),
			sample.QuilPerMinute.StringFixed(4),
			sample.EarningsPerMinuteUSD.StringFixed(4),
		)
	}

	writer.Flush()

	total := metrics.TotalBalance(dataset)
	if quote.Available {
		fmt.Fprintf(os.Stdout, "\nTotal: %s QUIL (%s USD @ %s)\n",
			total.StringFixed(4), total.Mul(quote.USD).StringFixed(2), quote.USD.String())
	} else {
		fmt.Fprintf(os.Stdout, "\nTotal: %s QUIL (wQUIL price unavailable)\n", total.StringFixed(4))
	}
	return nil
}

// recentPerPeer keeps the newest limit samples of each peer, merged and
// ordered newest first.
func recentPerPeer(samples []metrics.RateSample, limit int) []metrics.RateSample {
	if limit <= 0 {
		limit = 1
	}

	perPeer := make(map[string][]metrics.RateSample)
	for _, sample := range samples {
		perPeer[sample.PeerID] = append(perPeer[sample.PeerID], sample)
	}

	recent := make([]metrics.RateSample, 0, len(perPeer)*limit)
	for _, peerSamples := range perPeer {
		if len(peerSamples) > limit {
			peerSamples = peerSamples[len(peerSamples)-limit:]
		}
		recent = append(recent, peerSamples...)
	}

	sort.SliceStable(recent, func(i, j int) bool {
		if !recent[i].Timestamp.Equal(recent[j].Timestamp) {
			return recent[i].Timestamp.After(recent[j].Timestamp)
		}
		return recent[i].PeerID < recent[j].PeerID
	})
	return recent
}

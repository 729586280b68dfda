// Package watch flags peers that stopped reporting their balance.
package watch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pumbayo1/quiltracker/internal/alerting"
	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/metrics"
	"github.com/pumbayo1/quiltracker/internal/scheduler"
)

// Options tune the stale-peer watchdog.
type Options struct {
	StaleAfter time.Duration
	AlertsOn   bool
}

// Watchdog periodically scans the balance history and raises one alert per
// stale episode: a peer is flagged when its newest observation is older than
// StaleAfter, and re-armed once it reports again.
type Watchdog struct {
	opts     Options
	sched    *scheduler.Scheduler
	loader   *loader.Loader
	notifier alerting.Notifier
	logger   zerolog.Logger

	flagged map[string]bool
}

// New constructs the watchdog.
func New(opts Options, sched *scheduler.Scheduler, ld *loader.Loader, notifier alerting.Notifier, logger zerolog.Logger) *Watchdog {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	return &Watchdog{
		opts:     opts,
		sched:    sched,
		loader:   ld,
		notifier: notifier,
		logger:   logger.With().Str("component", "watchdog").Logger(),
		flagged:  make(map[string]bool),
	}
}

// Run begins the periodic staleness scan.
func (w *Watchdog) Run(ctx context.Context) error {
	if w.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return w.sched.Run(ctx, w.Check)
}

// Check evaluates every peer's newest observation as of firedAt.
func (w *Watchdog) Check(ctx context.Context, firedAt time.Time) error {
	dataset, err := w.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load balance history: %w", err)
	}

	latest := metrics.Latest(dataset)
	peers := make([]string, 0, len(latest))
	for peer := range latest {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	for _, peer := range peers {
		obs := latest[peer]
		staleFor := firedAt.Sub(obs.Timestamp)

		if staleFor <= w.opts.StaleAfter {
			if w.flagged[peer] {
				delete(w.flagged, peer)
				w.logger.Info().Str("peer_id", peer).Msg("peer reporting again")
			}
			continue
		}

		if w.flagged[peer] {
			continue
		}
		w.flagged[peer] = true

		w.logger.Warn().Str("peer_id", peer).
			Time("last_seen", obs.Timestamp).
			Dur("stale_for", staleFor).
			Msg("peer went stale")

		if !w.opts.AlertsOn || w.notifier == nil {
			continue
		}
		note := alerting.Notification{
			PeerID:      peer,
			LastSeen:    obs.Timestamp,
			StaleFor:    staleFor,
			Threshold:   w.opts.StaleAfter,
			LastBalance: obs.Balance,
		}
		if err := w.notifier.Notify(ctx, note); err != nil {
			w.logger.Error().Err(err).Str("peer_id", peer).Msg("failed to dispatch alert")
		}
	}

	return nil
}

package app

import (
	"context"
	"errors"
	"time"

	"github.com/pumbayo1/quiltracker/internal/agent"
	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/scheduler"
)

// Agent runs the node-side reporting loop until interrupted.
func (a *App) Agent(ctx context.Context) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	reporter, err := a.newReporter()
	if err != nil {
		return err
	}

	a.Logger.Info().Str("server", a.Config.Agent.ServerURL).Msg("starting reporting agent")
	err = reporter.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("agent terminated with error")
		return err
	}

	a.Logger.Info().Msg("reporting agent stopped")
	return nil
}

// Report submits a single balance observation to the tracker.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	balance, err := loader.NormalizeBalance(opts.Balance)
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	if opts.Timestamp != "" {
		at, err = loader.ParseTimestamp(opts.Timestamp)
		if err != nil {
			return err
		}
	}

	peer := opts.PeerID
	if peer == "" {
		peer = a.Config.Agent.PeerID
	}

	reporter := agent.New(agent.Options{
		PeerID:    peer,
		ServerURL: a.Config.Agent.ServerURL,
		Timeout:   a.Config.Agent.RequestTimeout,
	}, nil, a.Logger)

	return reporter.Submit(ctx, balance, at)
}

func (a *App) newReporter() (*agent.Reporter, error) {
	cfg := a.Config.Agent
	if cfg.BalanceCommand == "" && cfg.BalanceFile == "" {
		return nil, errors.New("agent.balance_command or agent.balance_file must be configured")
	}
	if cfg.BalanceCommand != "" && cfg.BalanceFile != "" {
		return nil, errors.New("agent.balance_command and agent.balance_file are mutually exclusive")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     cfg.Interval,
		AlignToClock: cfg.AlignToClock,
		Immediate:    true,
	}, a.Logger)

	return agent.New(agent.Options{
		PeerID:         cfg.PeerID,
		ServerURL:      cfg.ServerURL,
		BalanceCommand: cfg.BalanceCommand,
		BalanceFile:    cfg.BalanceFile,
		Timeout:        cfg.RequestTimeout,
	}, sched, a.Logger), nil
}

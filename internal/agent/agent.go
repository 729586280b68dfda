// Package agent reports a node's QUIL balance to the tracker.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/scheduler"
)

// Options parameterise the reporting agent. Exactly one balance source is
// expected: a command whose output contains the balance, or a file holding it.
type Options struct {
	PeerID         string
	ServerURL      string
	BalanceCommand string
	BalanceFile    string
	Timeout        time.Duration
}

// Reporter extracts the node's balance and posts it to the ingest endpoint.
type Reporter struct {
	opts    Options
	sched   *scheduler.Scheduler
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// New constructs a Reporter. An empty peer ID falls back to the hostname.
func New(opts Options, sched *scheduler.Scheduler, logger zerolog.Logger) *Reporter {
	if opts.PeerID == "" {
		if host, err := os.Hostname(); err == nil {
			opts.PeerID = host
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reporter{
		opts:    opts,
		sched:   sched,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.ServerURL, "/"),
		logger:  logger.With().Str("component", "agent").Logger(),
	}
}

// Run reports on the configured cadence until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	if r.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return r.sched.Run(ctx, r.Report)
}

// Report extracts the current balance and posts one observation stamped at.
func (r *Reporter) Report(ctx context.Context, at time.Time) error {
	balance, err := r.currentBalance(ctx)
	if err != nil {
		return err
	}
	return r.Submit(ctx, balance, at)
}

// Submit posts a single observation with an explicit balance and timestamp.
func (r *Reporter) Submit(ctx context.Context, balance decimal.Decimal, at time.Time) error {
	if r.baseURL == "" {
		return errors.New("server url not configured")
	}

	payload := map[string]string{
		"peer_id":   r.opts.PeerID,
		"balance":   balance.String(),
		"timestamp": at.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/update_balance", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rejectionError(resp)
	}

	r.logger.Info().Str("peer_id", r.opts.PeerID).
		Str("balance", balance.String()).
		Msg("balance reported")
	return nil
}

// currentBalance pulls the raw balance text from the configured source and
// normalises it, so garbage never leaves the node.
func (r *Reporter) currentBalance(ctx context.Context) (decimal.Decimal, error) {
	switch {
	case r.opts.BalanceCommand != "":
		out, err := exec.CommandContext(ctx, "/bin/sh", "-c", r.opts.BalanceCommand).Output()
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("run balance command: %w", err)
		}
		balance, err := loader.NormalizeBalance(string(out))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("balance command output: %w", err)
		}
		return balance, nil
	case r.opts.BalanceFile != "":
		raw, err := os.ReadFile(r.opts.BalanceFile)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("read balance file: %w", err)
		}
		balance, err := loader.NormalizeBalance(string(raw))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("balance file content: %w", err)
		}
		return balance, nil
	}
	return decimal.Decimal{}, errors.New("no balance source configured")
}

func rejectionError(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("tracker rejected report (%d): %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("tracker rejected report (%d)", resp.StatusCode)
}

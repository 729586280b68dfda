// Package oracle supplies the current USD price of wrapped QUIL. A quote is
// tri-state rather than a bare scalar so a legitimate zero price stays
// distinguishable from "the oracle is down".
package oracle

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Quote is the outcome of one price lookup.
type Quote struct {
	USD       decimal.Decimal
	Available bool
}

// Unavailable is the degraded quote used when every fetch attempt failed.
func Unavailable() Quote {
	return Quote{}
}

// Price returns the quote's USD value, zero when unavailable. Derived USD
// metrics computed against it come out zero, which is the documented
// degradation, not an error.
func (q Quote) Price() decimal.Decimal {
	if !q.Available {
		return decimal.Zero
	}
	return q.USD
}

// PriceFetcher retrieves the raw USD price from one concrete source.
type PriceFetcher interface {
	FetchUSD(ctx context.Context) (decimal.Decimal, error)
}

// Client wraps a PriceFetcher with the pipeline-facing policy: at most one
// retry, and any failure degrades to an unavailable quote. The computation
// pipeline never fails because of the oracle.
type Client struct {
	fetcher   PriceFetcher
	retryOnce bool
	logger    zerolog.Logger
}

// NewClient builds the policy wrapper around a concrete fetcher.
func NewClient(fetcher PriceFetcher, retryOnce bool, logger zerolog.Logger) *Client {
	return &Client{
		fetcher:   fetcher,
		retryOnce: retryOnce,
		logger:    logger.With().Str("component", "oracle").Logger(),
	}
}

// Quote fetches the current price, retrying once when configured.
func (c *Client) Quote(ctx context.Context) Quote {
	if c == nil || c.fetcher == nil {
		return Unavailable()
	}

	usd, err := c.fetcher.FetchUSD(ctx)
	if err != nil && c.retryOnce && ctx.Err() == nil {
		c.logger.Debug().Err(err).Msg("price fetch failed, retrying once")
		usd, err = c.fetcher.FetchUSD(ctx)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("price unavailable; USD metrics degrade to zero")
		return Unavailable()
	}
	return Quote{USD: usd, Available: true}
}

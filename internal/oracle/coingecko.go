package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const simplePricePath = "/simple/price"

// CoinGeckoOptions parameterise the CoinGecko fetcher.
type CoinGeckoOptions struct {
	BaseURL    string
	AssetID    string
	VsCurrency string
	Timeout    time.Duration
	UserAgent  string
}

// CoinGecko fetches spot prices from the CoinGecko simple price API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_oracle").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchUSD retrieves the configured asset's price in the vs currency.
func (c *CoinGecko) FetchUSD(ctx context.Context) (decimal.Decimal, error) {
	if c.opts.AssetID == "" {
		return decimal.Decimal{}, fmt.Errorf("oracle asset id not configured")
	}

	query := url.Values{}
	query.Set("ids", c.opts.AssetID)
	query.Set("vs_currencies", c.opts.VsCurrency)
	endpoint := c.baseURL + simplePricePath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, parseAPIError(resp.StatusCode, payload)
	}

	// shape: {"wrapped-quil": {"usd": 0.0543}}
	var prices map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(payload, &prices); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode price response: %w", err)
	}

	quote, ok := prices[c.opts.AssetID][c.opts.VsCurrency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("price response missing %s/%s", c.opts.AssetID, c.opts.VsCurrency)
	}
	return quote, nil
}

type apiErrorResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Error string `json:"error"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("coingecko api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("coingecko api error (%d)", status)
}

var _ PriceFetcher = (*CoinGecko)(nil)

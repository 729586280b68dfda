package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pumbayo1/quiltracker/internal/metrics"
	"github.com/pumbayo1/quiltracker/internal/oracle"
	"github.com/pumbayo1/quiltracker/internal/render"
	"github.com/pumbayo1/quiltracker/internal/store"
)

// jsonString accepts either a JSON string or a JSON number, so reporting
// agents may send `"balance": "12.5"` as well as `"balance": 12.5`.
type jsonString string

func (v *jsonString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = jsonString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = jsonString(n.String())
		return nil
	}
	return fmt.Errorf("expected string or number, got %s", strings.TrimSpace(string(data)))
}

type updateBalanceRequest struct {
	PeerID    jsonString `json:"peer_id"`
	Balance   jsonString `json:"balance"`
	Timestamp jsonString `json:"timestamp"`
}

func (s *Server) handleUpdateBalance(c *gin.Context) {
	var req updateBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	rec := store.RawRecord{
		PeerID:    strings.TrimSpace(string(req.PeerID)),
		Timestamp: strings.TrimSpace(string(req.Timestamp)),
		Balance:   strings.TrimSpace(string(req.Balance)),
	}
	if rec.PeerID == "" || rec.Timestamp == "" || rec.Balance == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	// stored verbatim; the loader normalises and drops garbage at read time
	if err := s.store.Append(c.Request.Context(), rec); err != nil {
		s.logger.Error().Err(err).Str("peer_id", rec.PeerID).Msg("append balance record failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record balance"})
		return
	}

	s.logger.Info().Str("peer_id", rec.PeerID).Str("balance", rec.Balance).Msg("balance recorded")
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type metricsResponse struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	PriceUSD       decimal.Decimal `json:"price_usd"`
	PriceAvailable bool            `json:"price_available"`
	Peers          []string        `json:"peers"`
	metrics.Report
}

func (s *Server) handleMetrics(c *gin.Context) {
	dataset, report, quote, err := s.snapshot(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load balance history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance history"})
		return
	}

	c.JSON(http.StatusOK, metricsResponse{
		GeneratedAt:    time.Now().UTC(),
		TotalBalance:   metrics.TotalBalance(dataset),
		PriceUSD:       quote.Price(),
		PriceAvailable: quote.Available,
		Peers:          dataset.Peers(),
		Report:         report,
	})
}

func (s *Server) handleChart(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("chart"), ".png")

	dataset, report, _, err := s.snapshot(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load balance history failed")
		c.String(http.StatusInternalServerError, "failed to load balance history")
		return
	}

	var buf bytes.Buffer
	switch err := render.WritePNG(&buf, name, dataset, report); {
	case errors.Is(err, render.ErrUnknownChart):
		c.String(http.StatusNotFound, "unknown chart")
	case errors.Is(err, render.ErrNoData):
		c.Status(http.StatusNoContent)
	case err != nil:
		s.logger.Error().Err(err).Str("chart", name).Msg("render chart failed")
		c.String(http.StatusInternalServerError, "failed to render chart")
	default:
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

type dashboardPeer struct {
	PeerID        string
	Balance       string
	QuilPerMinute string
	LastSeen      string
}

type dashboardData struct {
	GeneratedAt    string
	TotalBalance   string
	PriceUSD       string
	PriceAvailable bool
	Peers          []dashboardPeer
	Charts         []string
}

func (s *Server) handleDashboard(c *gin.Context) {
	dataset, report, quote, err := s.snapshot(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load balance history failed")
		c.String(http.StatusInternalServerError, "failed to load balance history")
		return
	}

	// forward walk: the final sample per peer wins
	lastRate := make(map[string]decimal.Decimal, 8)
	for _, sample := range report.RateSamples {
		lastRate[sample.PeerID] = sample.QuilPerMinute
	}

	latest := metrics.Latest(dataset)
	peers := make([]dashboardPeer, 0, len(latest))
	for _, peerID := range dataset.Peers() {
		obs := latest[peerID]
		peers = append(peers, dashboardPeer{
			PeerID:        peerID,
			Balance:       obs.Balance.StringFixed(4),
			QuilPerMinute: lastRate[peerID].StringFixed(4),
			LastSeen:      obs.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	c.HTML(http.StatusOK, "dashboard.html.tmpl", dashboardData{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		TotalBalance:   metrics.TotalBalance(dataset).String(),
		PriceUSD:       quote.Price().String(),
		PriceAvailable: quote.Available,
		Peers:          peers,
		Charts:         render.Names(),
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// snapshot loads the full history, computes the report and fetches the
// current price once, so every read endpoint sees one consistent view.
func (s *Server) snapshot(ctx context.Context) (metrics.Dataset, metrics.Report, oracle.Quote, error) {
	dataset, err := s.loader.Load(ctx)
	if err != nil {
		return nil, metrics.Report{}, oracle.Unavailable(), err
	}
	quote := s.quotes.Quote(ctx)
	return dataset, metrics.Compute(dataset, quote.Price()), quote, nil
}

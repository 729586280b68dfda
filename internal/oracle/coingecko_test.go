package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCoinGeckoMissingAssetID(t *testing.T) {
	c := NewCoinGecko(CoinGeckoOptions{}, noopLogger())
	if _, err := c.FetchUSD(context.Background()); err == nil {
		t.Fatal("缺少 asset id 时应返回错误")
	}
}

func TestCoinGeckoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"error_code": 429, "error_message": "You've exceeded the Rate Limit."},
		})
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL:   srv.URL,
		AssetID:   "wrapped-quil",
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())

	if _, err := c.FetchUSD(context.Background()); err == nil {
		t.Fatal("HTTP 429 应返回错误")
	}
}

func TestCoinGeckoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Fatalf("路径应为 /simple/price, 实际 %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "wrapped-quil" {
			t.Fatalf("ids 参数不正确: %q", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Fatalf("vs_currencies 参数不正确: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"wrapped-quil": map[string]any{"usd": 0.0543},
		})
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL:   srv.URL,
		AssetID:   "wrapped-quil",
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())

	usd, err := c.FetchUSD(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !usd.Equal(decimal.RequireFromString("0.0543")) {
		t.Fatalf("期望价格 0.0543, 实际 %s", usd)
	}
}

func TestCoinGeckoMissingAssetInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{
		BaseURL: srv.URL,
		AssetID: "wrapped-quil",
		Timeout: time.Second,
	}, noopLogger())

	if _, err := c.FetchUSD(context.Background()); err == nil {
		t.Fatal("响应缺少资产价格时应报错")
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTotalBalanceSumsLatestPerPeer(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := Dataset{
		obs("A", start, "5.0"),
		obs("B", start.Add(time.Minute), "7.5"),
	}

	total := TotalBalance(dataset)
	if !total.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("期望总余额 12.5, 实际 %s", total)
	}
}

func TestTotalBalanceUsesNewestObservation(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := Dataset{
		obs("A", start, "5.0"),
		obs("A", start.Add(time.Hour), "9.0"),
		obs("B", start.Add(30*time.Minute), "1.0"),
	}

	if total := TotalBalance(dataset); !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("期望总余额 10, 实际 %s", total)
	}
}

func TestTotalBalanceDuplicateTimestampLastWriteWins(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := Dataset{
		obs("A", start, "5.0"),
		obs("A", start, "6.0"),
	}

	if total := TotalBalance(dataset); !total.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("同一时间戳应取后写入的 6, 实际 %s", total)
	}
}

func TestTotalBalanceRoundsHalfUpAtBoundary(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)

	// exactly on the .00005 boundary: rounds up
	boundary := Dataset{obs("A", start, "0.00005")}
	if total := TotalBalance(boundary); !total.Equal(decimal.RequireFromString("0.0001")) {
		t.Fatalf("0.00005 应进位为 0.0001, 实际 %s", total)
	}

	below := Dataset{obs("A", start, "0.000049")}
	if total := TotalBalance(below); !total.IsZero() {
		t.Fatalf("0.000049 应舍为 0, 实际 %s", total)
	}

	mixed := Dataset{
		obs("A", start, "12.34565"),
		obs("B", start, "0.1"),
	}
	if total := TotalBalance(mixed); !total.Equal(decimal.RequireFromString("12.4457")) {
		t.Fatalf("期望总余额 12.4457, 实际 %s", total)
	}
}

func TestTotalBalanceEmptyDataset(t *testing.T) {
	if total := TotalBalance(Dataset{}); !total.IsZero() {
		t.Fatalf("空数据集总余额应为 0, 实际 %s", total)
	}
}

func TestLatestPerPeer(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := Dataset{
		obs("A", start, "1"),
		obs("B", start.Add(time.Minute), "2"),
		obs("A", start.Add(2*time.Minute), "3"),
	}

	latest := Latest(dataset)
	if len(latest) != 2 {
		t.Fatalf("期望 2 个 peer, 实际 %d", len(latest))
	}
	if !latest["A"].Balance.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("peer A 最新余额期望 3, 实际 %s", latest["A"].Balance)
	}
	if !latest["B"].Timestamp.Equal(start.Add(time.Minute)) {
		t.Fatalf("peer B 最新时间戳不正确: %s", latest["B"].Timestamp)
	}
}

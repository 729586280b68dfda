package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pumbayo1/quiltracker/internal/metrics"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleData() (metrics.Dataset, metrics.Report) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := metrics.Dataset{
		{PeerID: "peer-a", Timestamp: start, Balance: decimal.NewFromInt(10)},
		{PeerID: "peer-a", Timestamp: start.Add(time.Minute), Balance: decimal.NewFromInt(12)},
		{PeerID: "peer-b", Timestamp: start.Add(30 * time.Second), Balance: decimal.NewFromInt(5)},
		{PeerID: "peer-b", Timestamp: start.Add(61 * time.Minute), Balance: decimal.NewFromInt(7)},
	}
	dataset.Sort()
	return dataset, metrics.Compute(dataset, decimal.RequireFromString("0.05"))
}

func TestWritePNGAllCharts(t *testing.T) {
	dataset, report := sampleData()

	for _, name := range Names() {
		var buf bytes.Buffer
		if err := WritePNG(&buf, name, dataset, report); err != nil {
			t.Fatalf("渲染 %s 失败: %v", name, err)
		}
		if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
			t.Fatalf("%s 输出应为 PNG", name)
		}
	}
}

func TestWritePNGSinglePointSeries(t *testing.T) {
	start := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	dataset := metrics.Dataset{
		{PeerID: "lonely", Timestamp: start, Balance: decimal.NewFromInt(1)},
	}
	report := metrics.Compute(dataset, decimal.Zero)

	var buf bytes.Buffer
	if err := WritePNG(&buf, ChartBalances, dataset, report); err != nil {
		t.Fatalf("单点序列应可渲染: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatal("输出应为 PNG")
	}
}

func TestWritePNGNoData(t *testing.T) {
	var buf bytes.Buffer
	err := WritePNG(&buf, ChartBalances, metrics.Dataset{}, metrics.Report{})
	if err != ErrNoData {
		t.Fatalf("空数据应返回 ErrNoData, 实际 %v", err)
	}
}

func TestWritePNGUnknownChart(t *testing.T) {
	dataset, report := sampleData()
	var buf bytes.Buffer
	if err := WritePNG(&buf, "nope", dataset, report); err == nil {
		t.Fatal("未知图表名应报错")
	}
}

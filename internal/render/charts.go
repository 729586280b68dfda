// Package render draws the dashboard charts as PNG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/pumbayo1/quiltracker/internal/metrics"
)

// Chart names accepted by WritePNG and served under /charts/:name.png.
const (
	ChartBalances       = "balances"
	ChartQuilPerMinute  = "quil_per_minute"
	ChartMinuteEarnings = "minute_earnings"
	ChartHourlyGrowth   = "hourly_growth"
	ChartHourlyEarnings = "hourly_earnings"
)

// ErrNoData is returned when the requested chart has nothing to draw.
var ErrNoData = errors.New("no data points to draw")

// ErrUnknownChart is returned for names outside Names().
var ErrUnknownChart = errors.New("unknown chart")

// Names lists every chart in dashboard order.
func Names() []string {
	return []string{
		ChartBalances,
		ChartQuilPerMinute,
		ChartMinuteEarnings,
		ChartHourlyGrowth,
		ChartHourlyEarnings,
	}
}

type point struct {
	x time.Time
	y float64
}

// WritePNG renders the named chart for the given dataset and report into w.
func WritePNG(w io.Writer, name string, dataset metrics.Dataset, report metrics.Report) error {
	var (
		title  string
		yLabel string
		peers  map[string][]point
	)

	switch name {
	case ChartBalances:
		title, yLabel = "Node Balance Over Time", "Balance (QUIL)"
		peers = balancePoints(dataset)
	case ChartQuilPerMinute:
		title, yLabel = "QUIL Earned Per Minute", "QUIL / min"
		peers = samplePoints(report.RateSamples, func(s metrics.RateSample) float64 {
			return s.QuilPerMinute.InexactFloat64()
		})
	case ChartMinuteEarnings:
		title, yLabel = "Earnings Per Minute (USD)", "USD / min"
		peers = samplePoints(report.RateSamples, func(s metrics.RateSample) float64 {
			return s.EarningsPerMinuteUSD.InexactFloat64()
		})
	case ChartHourlyGrowth:
		title, yLabel = "Hourly Balance Growth", "QUIL / hour"
		peers = bucketPoints(report.Hourly, func(b metrics.HourlyBucket) float64 {
			return b.Growth.InexactFloat64()
		})
	case ChartHourlyEarnings:
		title, yLabel = "Hourly Earnings (USD)", "USD / hour"
		peers = bucketPoints(report.Hourly, func(b metrics.HourlyBucket) float64 {
			return b.EarningsUSD.InexactFloat64()
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}

	series := peerSeries(peers)
	if len(series) == 0 {
		return ErrNoData
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	yaxis := chart.YAxis{
		Name:           yLabel,
		ValueFormatter: valueFormatter,
	}
	if r := flatRange(peers); r != nil {
		yaxis.Range = r
	}
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis:  yaxis,
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func balancePoints(dataset metrics.Dataset) map[string][]point {
	peers := make(map[string][]point)
	for _, obs := range dataset {
		peers[obs.PeerID] = append(peers[obs.PeerID], point{x: obs.Timestamp, y: obs.Balance.InexactFloat64()})
	}
	return peers
}

func samplePoints(samples []metrics.RateSample, value func(metrics.RateSample) float64) map[string][]point {
	peers := make(map[string][]point)
	for _, s := range samples {
		peers[s.PeerID] = append(peers[s.PeerID], point{x: s.Timestamp, y: value(s)})
	}
	return peers
}

func bucketPoints(buckets []metrics.HourlyBucket, value func(metrics.HourlyBucket) float64) map[string][]point {
	peers := make(map[string][]point)
	for _, b := range buckets {
		peers[b.PeerID] = append(peers[b.PeerID], point{x: b.Hour, y: value(b)})
	}
	return peers
}

// peerSeries builds one time series per peer, peers in lexical order so the
// legend is stable between renders.
func peerSeries(peers map[string][]point) []chart.Series {
	names := make([]string, 0, len(peers))
	for name := range peers {
		names = append(names, name)
	}
	sort.Strings(names)

	series := make([]chart.Series, 0, len(names))
	for _, name := range names {
		points := padFlat(peers[name])
		if len(points) == 0 {
			continue
		}
		xs := make([]time.Time, len(points))
		ys := make([]float64, len(points))
		for i, p := range points {
			xs[i] = p.x
			ys[i] = p.y
		}
		series = append(series, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
		})
	}
	return series
}

// flatRange returns an explicit y axis range when every value across every
// peer coincides; go-chart cannot derive a drawable range from a flat chart.
func flatRange(peers map[string][]point) chart.Range {
	var (
		value float64
		seen  bool
	)
	for _, points := range peers {
		for _, p := range points {
			if !seen {
				value, seen = p.y, true
				continue
			}
			if p.y != value {
				return nil
			}
		}
	}
	if !seen {
		return nil
	}
	pad := math.Abs(value) / 10
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: value - pad, Max: value + pad}
}

// padFlat appends a synthetic point one minute after a series whose x values
// all coincide; go-chart cannot render a zero-width x range.
func padFlat(points []point) []point {
	if len(points) == 0 {
		return points
	}
	first := points[0].x
	for _, p := range points[1:] {
		if !p.x.Equal(first) {
			return points
		}
	}
	last := points[len(points)-1]
	return append(points, point{x: last.x.Add(time.Minute), y: last.y})
}

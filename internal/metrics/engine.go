// Package metrics derives earnings figures from merged balance history.
// It is pure computation: no I/O, no clocks, no external calls.
package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var nanosPerMinute = decimal.NewFromInt(int64(time.Minute))

// Observation is one reported (timestamp, balance) pair for a peer.
type Observation struct {
	PeerID    string          `json:"peer_id"`
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
}

// Dataset is the union of every peer's series, ordered by timestamp
// ascending. Peer ID is a grouping key, not a sort key.
type Dataset []Observation

// Sort orders the dataset by timestamp ascending. The sort is stable:
// records sharing a timestamp keep their relative input order, and sorting
// an already sorted dataset changes nothing.
func (d Dataset) Sort() {
	sort.SliceStable(d, func(i, j int) bool {
		return d[i].Timestamp.Before(d[j].Timestamp)
	})
}

// Peers returns the distinct peer IDs in first-appearance order.
func (d Dataset) Peers() []string {
	seen := make(map[string]struct{}, 8)
	peers := make([]string, 0, 8)
	for _, obs := range d {
		if _, ok := seen[obs.PeerID]; ok {
			continue
		}
		seen[obs.PeerID] = struct{}{}
		peers = append(peers, obs.PeerID)
	}
	return peers
}

// RateSample is the instantaneous earnings estimate at one observation,
// derived from the diff against the peer's previous observation. The first
// observation of a peer has no predecessor and carries a zero rate.
type RateSample struct {
	PeerID               string          `json:"peer_id"`
	Timestamp            time.Time       `json:"timestamp"`
	Balance              decimal.Decimal `json:"balance"`
	QuilPerMinute        decimal.Decimal `json:"quil_per_minute"`
	EarningsPerMinuteUSD decimal.Decimal `json:"earnings_per_minute_usd"`
}

// HourlyBucket summarises one peer-hour: the last balance observed within
// the hour and the growth against the peer's previous bucket.
type HourlyBucket struct {
	PeerID      string          `json:"peer_id"`
	Hour        time.Time       `json:"hour"`
	Balance     decimal.Decimal `json:"balance"`
	Growth      decimal.Decimal `json:"growth"`
	EarningsUSD decimal.Decimal `json:"earnings_usd"`
}

// Report bundles the derived tables of one computation pass.
type Report struct {
	RateSamples []RateSample   `json:"rate_samples"`
	Hourly      []HourlyBucket `json:"hourly_buckets"`
}

// Compute derives rate samples and hourly buckets from a timestamp-ordered
// dataset. price is the USD price of one QUIL; a zero price means the quote
// is unavailable and every USD field comes out zero. Negative deltas are
// data, not errors, and pass through signed.
func Compute(dataset Dataset, price decimal.Decimal) Report {
	report := Report{
		RateSamples: make([]RateSample, 0, len(dataset)),
		Hourly:      []HourlyBucket{},
	}

	prev := make(map[string]Observation, 8)
	for _, obs := range dataset {
		rate := decimal.Zero
		if last, ok := prev[obs.PeerID]; ok {
			rate = perMinuteRate(last, obs)
		}
		report.RateSamples = append(report.RateSamples, RateSample{
			PeerID:               obs.PeerID,
			Timestamp:            obs.Timestamp,
			Balance:              obs.Balance,
			QuilPerMinute:        rate,
			EarningsPerMinuteUSD: rate.Mul(price),
		})
		prev[obs.PeerID] = obs
	}

	report.Hourly = hourlyBuckets(dataset, price)
	return report
}

// perMinuteRate computes the balance delta per minute across two consecutive
// observations of one peer. A zero time delta (duplicate timestamp) yields
// zero instead of a division blow-up.
func perMinuteRate(prev, cur Observation) decimal.Decimal {
	elapsed := cur.Timestamp.Sub(prev.Timestamp)
	if elapsed == 0 {
		return decimal.Zero
	}
	delta := cur.Balance.Sub(prev.Balance)
	return delta.Mul(nanosPerMinute).Div(decimal.NewFromInt(int64(elapsed)))
}

// hourlyBuckets reduces each (peer, hour-floor) group to the last balance
// observed in the hour, then diffs consecutive buckets per peer. Buckets are
// emitted peer-major in lexical peer order, hours ascending, the way a
// grouped table sorted on both keys reads.
func hourlyBuckets(dataset Dataset, price decimal.Decimal) []HourlyBucket {
	lastInHour := make(map[string]map[int64]decimal.Decimal, 8)
	for _, obs := range dataset {
		hour := obs.Timestamp.UTC().Truncate(time.Hour).Unix()
		byHour, ok := lastInHour[obs.PeerID]
		if !ok {
			byHour = make(map[int64]decimal.Decimal, 8)
			lastInHour[obs.PeerID] = byHour
		}
		// dataset order is timestamp order, so the final write wins the hour
		byHour[hour] = obs.Balance
	}

	peers := make([]string, 0, len(lastInHour))
	for peer := range lastInHour {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	buckets := make([]HourlyBucket, 0, len(dataset))
	for _, peer := range peers {
		byHour := lastInHour[peer]
		hours := make([]int64, 0, len(byHour))
		for hour := range byHour {
			hours = append(hours, hour)
		}
		sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })

		var prevBalance decimal.Decimal
		for i, hour := range hours {
			balance := byHour[hour]
			growth := decimal.Zero
			if i > 0 {
				growth = balance.Sub(prevBalance)
			}
			buckets = append(buckets, HourlyBucket{
				PeerID:      peer,
				Hour:        time.Unix(hour, 0).UTC(),
				Balance:     balance,
				Growth:      growth,
				EarningsUSD: growth.Mul(price),
			})
			prevBalance = balance
		}
	}
	return buckets
}

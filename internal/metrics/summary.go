package metrics

import "github.com/shopspring/decimal"

// Latest returns each peer's newest observation. On duplicate timestamps the
// later dataset position wins, consistent with last-write-wins ingest.
func Latest(dataset Dataset) map[string]Observation {
	latest := make(map[string]Observation, 8)
	for _, obs := range dataset {
		cur, ok := latest[obs.PeerID]
		if !ok || !obs.Timestamp.Before(cur.Timestamp) {
			latest[obs.PeerID] = obs
		}
	}
	return latest
}

// TotalBalance sums the latest balance of every peer, rounded to four
// decimal places. Rounding is half-up (half away from zero), so the .00005
// boundary resolves upward: 0.00005 -> 0.0001.
func TotalBalance(dataset Dataset) decimal.Decimal {
	total := decimal.Zero
	for _, obs := range Latest(dataset) {
		total = total.Add(obs.Balance)
	}
	return total.Round(4)
}

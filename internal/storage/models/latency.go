package models

// Outcome is the result of probing one address for one domain.
type Outcome struct {
	Domain    string   `json:"domain"`
	Address   string   `json:"address"`
	Success   bool     `json:"success"`
	LatencyMS *float64 `json:"latency_ms,omitempty"` // nil if failed
	Err       error    `json:"-"`
}

// LatencyTable maps domain -> address -> latency in milliseconds.
// Only successful outcomes contribute entries.
type LatencyTable map[string]map[string]float64

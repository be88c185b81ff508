package models

// Entry sources.
const (
	SourceProbed   = "probed"
	SourceFallback = "fallback"
)

// Entry pins one domain to one address.
type Entry struct {
	Domain    string   `json:"domain"`
	Address   string   `json:"address"`
	LatencyMS *float64 `json:"latency_ms,omitempty"` // nil for fallback entries
	Source    string   `json:"source"`
}

// Assignment is the ordered set of domain pins produced by one run.
// It holds at most one entry per domain.
type Assignment []Entry

// Lookup returns the entry for domain.
func (a Assignment) Lookup(domain string) (Entry, bool) {
	for _, e := range a {
		if e.Domain == domain {
			return e, true
		}
	}
	return Entry{}, false
}

// Domains returns the assigned domains in order.
func (a Assignment) Domains() []string {
	out := make([]string, len(a))
	for i, e := range a {
		out[i] = e.Domain
	}
	return out
}

// Map returns the assignment as domain -> address.
func (a Assignment) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, e := range a {
		m[e.Domain] = e.Address
	}
	return m
}

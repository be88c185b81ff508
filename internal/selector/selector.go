// Package selector reduces a per-domain latency table to one address per
// domain, falling back to the previous run's choice when nothing answered.
package selector

import (
	"hostpin/internal/storage/models"
)

// Selection is the result of reducing one run's latency table.
type Selection struct {
	Assignment models.Assignment
	Fallbacks  []string // domains carried forward from the prior assignment
	Unresolved []string // domains with neither a probe result nor a fallback
}

// AllUnresolved reports whether no domain received an address.
func (s Selection) AllUnresolved() bool {
	return len(s.Assignment) == 0
}

// Select picks, for each domain in order, the address with the strictly
// lowest latency. Ties go to the address that comes first in pool. Domains
// without any successful probe reuse their entry from prior, if any.
func Select(table models.LatencyTable, pool, domains []string, prior models.Assignment) Selection {
	var sel Selection

	for _, domain := range domains {
		if entry, ok := fastest(table[domain], pool); ok {
			entry.Domain = domain
			sel.Assignment = append(sel.Assignment, entry)
			continue
		}

		if prev, ok := prior.Lookup(domain); ok {
			sel.Assignment = append(sel.Assignment, models.Entry{
				Domain:  domain,
				Address: prev.Address,
				Source:  models.SourceFallback,
			})
			sel.Fallbacks = append(sel.Fallbacks, domain)
			continue
		}

		sel.Unresolved = append(sel.Unresolved, domain)
	}

	return sel
}

// fastest scans pool in order. The first of equal latencies wins.
func fastest(latencies map[string]float64, pool []string) (models.Entry, bool) {
	var best models.Entry
	found := false
	for _, addr := range pool {
		lat, ok := latencies[addr]
		if !ok {
			continue
		}
		if !found || lat < *best.LatencyMS {
			l := lat
			best = models.Entry{Address: addr, LatencyMS: &l, Source: models.SourceProbed}
			found = true
		}
	}
	return best, found
}

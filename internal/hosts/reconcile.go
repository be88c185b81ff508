// Package hosts reads, reconciles and rewrites the system hosts file.
//
// hostpin owns a single managed block at the end of the file:
//
//	# hostpin auto update 2026-01-02 15:04:05
//	104.18.22.110 www.notion.so
//	104.18.22.110 msgstore.www.notion.so
//
// Every run drops the previous block and any other mapping line that names
// a domain about to be assigned, keeps everything else verbatim, and
// appends a fresh block.
package hosts

import (
	"strings"
	"time"

	"hostpin/internal/storage/models"
)

// SentinelPrefix starts the comment line that opens the managed block.
const SentinelPrefix = "# hostpin auto update"

// StampLayout formats the timestamp written after SentinelPrefix.
const StampLayout = "2006-01-02 15:04:05"

// Mapping is one "address hostname" pair of the managed block.
type Mapping struct {
	Address string `json:"address"`
	Domain  string `json:"domain"`
}

// Block is the managed block found in a hosts document.
type Block struct {
	Stamp   string    `json:"stamp"`
	Entries []Mapping `json:"entries"`
}

// Reconcile merges assignment into text and returns the new document.
//
// A line is dropped when it is a managed-block sentinel, or when it is a
// mapping line whose hostnames include an assigned domain. Multi-hostname
// lines are dropped whole, never edited. A blank line directly before a
// sentinel is the separator written by a previous run and goes with it.
// All other lines are preserved in order. Windows line endings are kept.
func Reconcile(text string, assignment models.Assignment, now time.Time) string {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	assigned := make(map[string]struct{}, len(assignment))
	for _, e := range assignment {
		assigned[strings.ToLower(e.Domain)] = struct{}{}
	}

	var kept []string
	for _, line := range splitLines(text) {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, SentinelPrefix) {
			if n := len(kept); n > 0 && strings.TrimSpace(kept[n-1]) == "" {
				kept = kept[:n-1]
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			kept = append(kept, line)
			continue
		}
		if mapsAny(trimmed, assigned) {
			continue
		}
		kept = append(kept, line)
	}

	kept = append(kept, "", SentinelPrefix+" "+now.Format(StampLayout))
	for _, e := range assignment {
		kept = append(kept, e.Address+" "+e.Domain)
	}

	return strings.Join(kept, eol) + eol
}

// ParseManagedBlock returns the last managed block in text. The block runs
// from its sentinel to the first line that is not a mapping.
func ParseManagedBlock(text string) (*Block, bool) {
	lines := splitLines(text)
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), SentinelPrefix) {
			start = i
		}
	}
	if start < 0 {
		return nil, false
	}

	sentinel := strings.TrimSpace(lines[start])
	block := &Block{Stamp: strings.TrimSpace(strings.TrimPrefix(sentinel, SentinelPrefix))}
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		fields := strings.Fields(trimmed)
		if len(fields) < 2 || strings.HasPrefix(trimmed, "#") {
			break
		}
		block.Entries = append(block.Entries, Mapping{Address: fields[0], Domain: fields[1]})
	}
	return block, true
}

// splitLines splits text into lines without their terminators. A trailing
// newline does not produce an empty last line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// mapsAny reports whether a mapping line names one of domains. Hostnames
// are the fields after the address, up to an inline comment.
func mapsAny(line string, domains map[string]struct{}) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}
	for _, host := range fields[1:] {
		if strings.HasPrefix(host, "#") {
			break
		}
		if _, ok := domains[strings.ToLower(host)]; ok {
			return true
		}
	}
	return false
}

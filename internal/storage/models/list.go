package models

import "strings"

// ParseList splits newline or comma separated text into trimmed,
// deduplicated entries. Blank entries are dropped.
func ParseList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	return Dedup(fields)
}

// FormatList is the inverse of ParseList.
func FormatList(items []string) string {
	return strings.Join(items, "\n")
}

// Dedup trims items and removes blanks and repeats, keeping the first
// occurrence of each.
func Dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

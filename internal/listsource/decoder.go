package listsource

import (
	"encoding/base64"
	"net"
	"strings"

	apperrors "hostpin/pkg/errors"
)

// Kind selects how entries are validated.
type Kind string

const (
	KindAddresses Kind = "addresses"
	KindDomains   Kind = "domains"
)

// Result is a decoded list.
type Result struct {
	Entries []string
	Skipped []string // tokens that were not valid for the kind
}

// Decode parses list content: plain text or base64 of plain text, entries
// separated by whitespace or commas, "#" starting a comment. Hosts-file
// style lines ("address name...") contribute their address or their names
// depending on kind.
func Decode(content []byte, kind Kind) (*Result, error) {
	text := string(content)
	if decoded, ok := decodeBase64(strings.TrimSpace(text)); ok {
		text = decoded
	}

	res := &Result{}
	seen := make(map[string]struct{})
	add := func(token string) {
		if !valid(token, kind) {
			res.Skipped = append(res.Skipped, token)
			return
		}
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		res.Entries = append(res.Entries, token)
	}

	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		if len(fields) == 0 {
			continue
		}

		// Hosts-file line: first field an IP, the rest names.
		if len(fields) > 1 && net.ParseIP(fields[0]) != nil && !valid(fields[1], KindAddresses) {
			if kind == KindAddresses {
				add(fields[0])
			} else {
				for _, name := range fields[1:] {
					add(name)
				}
			}
			continue
		}
		for _, f := range fields {
			add(f)
		}
	}

	if len(res.Entries) == 0 {
		return res, apperrors.ErrListEmpty
	}
	return res, nil
}

// decodeBase64 succeeds only when content is base64 of printable text.
func decodeBase64(content string) (string, bool) {
	if content == "" || strings.ContainsAny(content, " ,.:#") {
		return "", false
	}
	content = strings.Join(strings.Fields(content), "")

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(content)
		if err == nil && printable(decoded) {
			return string(decoded), true
		}
	}
	return "", false
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' || c >= 0x7f {
			return false
		}
	}
	return len(b) > 0
}

func valid(token string, kind Kind) bool {
	if kind == KindAddresses {
		return net.ParseIP(token) != nil
	}
	return validHostname(token)
}

// validHostname accepts dotted LDH names such as www.example.com.
func validHostname(name string) bool {
	name = strings.TrimSuffix(name, ".")
	if len(name) == 0 || len(name) > 253 || !strings.Contains(name, ".") {
		return false
	}
	if net.ParseIP(name) != nil {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

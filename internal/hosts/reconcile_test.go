package hosts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostpin/internal/storage/models"
)

var (
	t1 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2026, 5, 1, 11, 30, 0, 0, time.UTC)
)

const baseHosts = `127.0.0.1 localhost
::1 localhost ip6-localhost

# corporate
10.1.1.1 intranet.corp   # keep me
`

func assign(pairs ...string) models.Assignment {
	var a models.Assignment
	for i := 0; i+1 < len(pairs); i += 2 {
		a = append(a, models.Entry{Domain: pairs[i], Address: pairs[i+1], Source: models.SourceProbed})
	}
	return a
}

func lines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// withoutStamp blanks the timestamp so two documents can be compared.
func withoutStamp(text string) string {
	var out []string
	for _, l := range lines(text) {
		if strings.HasPrefix(l, SentinelPrefix) {
			l = SentinelPrefix
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func TestReconcileAppendsManagedBlock(t *testing.T) {
	out := Reconcile(baseHosts, assign("www.notion.so", "104.18.22.110", "exp.notion.so", "1.2.3.4"), t1)

	want := baseHosts + "\n" +
		"# hostpin auto update 2026-05-01 10:00:00\n" +
		"104.18.22.110 www.notion.so\n" +
		"1.2.3.4 exp.notion.so\n"
	assert.Equal(t, want, out)
}

func TestReconcileDropsConflictingMultiHostnameLine(t *testing.T) {
	doc := "127.0.0.1 localhost\n1.2.3.4 d other\n5.6.7.8 unrelated\n"
	out := Reconcile(doc, assign("d", "9.9.9.9"), t1)

	assert.NotContains(t, out, "1.2.3.4 d")
	assert.NotContains(t, out, "other", "multi-hostname lines are dropped whole")
	assert.Contains(t, lines(out), "9.9.9.9 d")
	assert.Contains(t, lines(out), "5.6.7.8 unrelated")
}

func TestReconcileConflictMatching(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		dropped bool
	}{
		{"first hostname", "1.1.1.1 d", true},
		{"later hostname", "1.1.1.1 a b d", true},
		{"case insensitive", "1.1.1.1 D", true},
		{"tab separated", "1.1.1.1\td", true},
		{"indented", "   1.1.1.1 d", true},
		{"same address is still replaced", "9.9.9.9 d old", true},
		{"substring is not a match", "1.1.1.1 dd sub.d", false},
		{"inline comment mention", "1.1.1.1 other # d", false},
		{"commented out", "# 1.1.1.1 d", false},
		{"lone token", "d", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Reconcile(tt.line+"\n", assign("d", "9.9.9.9"), t1)
			present := false
			for _, l := range lines(out) {
				if l == tt.line {
					present = true
				}
			}
			assert.Equal(t, !tt.dropped, present)
		})
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	a := assign("a.example", "1.1.1.1", "b.example", "2.2.2.2")

	once := Reconcile(baseHosts, a, t1)
	twice := Reconcile(once, a, t2)
	thrice := Reconcile(twice, a, t2)

	assert.Equal(t, withoutStamp(once), withoutStamp(twice))
	assert.Equal(t, twice, thrice)

	block, ok := ParseManagedBlock(twice)
	require.True(t, ok)
	assert.Equal(t, "2026-05-01 11:30:00", block.Stamp)
	assert.Equal(t, []Mapping{{"1.1.1.1", "a.example"}, {"2.2.2.2", "b.example"}}, block.Entries)
	assert.Equal(t, 1, strings.Count(twice, SentinelPrefix))
}

func TestReconcilePreservesUnmanagedLines(t *testing.T) {
	doc := "# header\n\n127.0.0.1 localhost\n1.1.1.1 a.example\n  # indented comment\n10.0.0.1 nas\n\n\n"
	before := lines(doc)

	out := Reconcile(doc, assign("a.example", "8.8.8.8"), t1)
	after := lines(out)

	// Every unmanaged line survives, unchanged and in order.
	i := 0
	for _, l := range before {
		if l == "1.1.1.1 a.example" {
			continue
		}
		for i < len(after) && after[i] != l {
			i++
		}
		require.Less(t, i, len(after), "line %q missing or out of order", l)
		i++
	}
}

func TestReconcileReplacesPreviousBlock(t *testing.T) {
	first := Reconcile(baseHosts, assign("a.example", "1.1.1.1", "b.example", "2.2.2.2"), t1)
	second := Reconcile(first, assign("a.example", "3.3.3.3"), t2)

	assert.Equal(t, 1, strings.Count(second, SentinelPrefix))
	assert.NotContains(t, second, "1.1.1.1 a.example")
	assert.Contains(t, lines(second), "3.3.3.3 a.example")
	// Not assigned this run, so its old mapping is left alone.
	assert.Contains(t, lines(second), "2.2.2.2 b.example")
}

func TestReconcileKeepsCRLF(t *testing.T) {
	doc := "127.0.0.1 localhost\r\n1.1.1.1 d\r\n"
	out := Reconcile(doc, assign("d", "9.9.9.9"), t1)

	assert.Equal(t, "127.0.0.1 localhost\r\n\r\n# hostpin auto update 2026-05-01 10:00:00\r\n9.9.9.9 d\r\n", out)
}

func TestReconcileEmptyDocument(t *testing.T) {
	out := Reconcile("", assign("d", "9.9.9.9"), t1)
	assert.Equal(t, "\n# hostpin auto update 2026-05-01 10:00:00\n9.9.9.9 d\n", out)
}

func TestParseManagedBlock(t *testing.T) {
	_, ok := ParseManagedBlock(baseHosts)
	assert.False(t, ok)

	doc := baseHosts + "\n# hostpin auto update 2026-05-01 10:00:00\n1.1.1.1 a\n2.2.2.2 b\n\n10.0.0.9 later\n"
	block, ok := ParseManagedBlock(doc)
	require.True(t, ok)
	assert.Equal(t, []Mapping{{"1.1.1.1", "a"}, {"2.2.2.2", "b"}}, block.Entries)
}

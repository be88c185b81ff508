package models

import (
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"a\nb\na", []string{"a", "b"}},
		{" a , b,\r\n\n c ", []string{"a", "b", "c"}},
		{"b\na\nb\nc\na", []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		if got := ParseList(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseList(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAssignmentLookup(t *testing.T) {
	a := Assignment{
		{Domain: "a.example", Address: "1.1.1.1", Source: SourceProbed},
		{Domain: "b.example", Address: "2.2.2.2", Source: SourceFallback},
	}

	e, ok := a.Lookup("b.example")
	if !ok || e.Address != "2.2.2.2" {
		t.Errorf("Lookup(b.example) = %+v, %v", e, ok)
	}
	if _, ok := a.Lookup("c.example"); ok {
		t.Error("Lookup(c.example) should miss")
	}
	if got := a.Domains(); !reflect.DeepEqual(got, []string{"a.example", "b.example"}) {
		t.Errorf("Domains() = %v", got)
	}
	if got := a.Map()["a.example"]; got != "1.1.1.1" {
		t.Errorf("Map()[a.example] = %q", got)
	}
}

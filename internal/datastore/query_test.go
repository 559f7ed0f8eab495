package datastore

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return doc
}

func TestParseMatch(t *testing.T) {
	doc := decode(t, `{
		"id": "yara_abc_1",
		"name": "Evil Rule",
		"type": "yara",
		"status": "DEPLOYED",
		"signature_id": "abc",
		"order": 3,
		"result": {"sections": [
			{"tags": {"file": {"rule": {"yara": ["src.one"]}}}},
			{"tags": {"file": {"rule": {"yara": ["src.two"]}}}}
		]}
	}`)

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"match all", "*", true},
		{"match all field form", "*:*", true},
		{"exact", "status:DEPLOYED", true},
		{"exact miss", "status:NOISY", false},
		{"quoted with space", `name:"Evil Rule"`, true},
		{"implicit and", "type:yara status:DEPLOYED", true},
		{"and miss", "type:yara AND status:NOISY", false},
		{"or", "status:NOISY OR status:DEPLOYED", true},
		{"not", "NOT id:yara_abc_1", false},
		{"not wildcard", "signature_id:abc AND NOT id:abc*", true},
		{"wildcard", "id:yara_*_1", true},
		{"single char wildcard", "id:yara_ab?_1", true},
		{"exists", "name:*", true},
		{"missing field exists", "nope:*", false},
		{"number", "order:3", true},
		{"nested array", `result.sections.tags.file.rule.yara:"src.two"`, true},
		{"nested array miss", `result.sections.tags.file.rule.yara:"src.three"`, false},
		{"parens", "(status:NOISY OR type:yara) AND NOT status:DISABLED", true},
		{"not parens", `NOT(id:"yara_abc_1")`, false},
		{"fuzzy one edit", "status:DEPLOYEE~", true},
		{"fuzzy two edits", "status:DEPXOYEE~", true},
		{"fuzzy too far", "status:DXPXOYXE~", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.query, err)
			}
			if got := n.Match(doc); got != tt.want {
				t.Errorf("Parse(%q).Match() = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, q := range []string{"", "status", "status:", `name:"open`, "(status:A", "AND status:A", "status:A)"} {
		if _, err := Parse(q); err == nil {
			t.Errorf("Parse(%q) expected error", q)
		}
	}
}

func TestQuote(t *testing.T) {
	doc := map[string]any{"name": `say "hi"`}
	n, err := Parse("name:" + Quote(`say "hi"`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !n.Match(doc) {
		t.Errorf("quoted value did not match")
	}
}

func TestLookupFlattens(t *testing.T) {
	doc := decode(t, `{"a": [{"b": [1, 2]}, {"b": 3}, {"c": 4}]}`)
	got := Lookup(doc, "a.b")
	if len(got) != 3 {
		t.Fatalf("Lookup() = %v, want 3 values", got)
	}
	if Lookup(doc, "a.z") != nil {
		t.Errorf("expected nil for missing path")
	}
}

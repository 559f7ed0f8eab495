package domain

import (
	"strings"
	"testing"
	"time"
)

func TestShortID(t *testing.T) {
	a := ShortID("rule a { condition: true }")
	b := ShortID("rule a { condition: true }")
	c := ShortID("rule b { condition: true }")

	if a != b {
		t.Errorf("ShortID not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("ShortID collision for different data")
	}
	if len(a) == 0 || len(a) > 11 {
		t.Errorf("ShortID length = %d, want 1..11", len(a))
	}
	for _, r := range a {
		if !strings.ContainsRune(base62, r) {
			t.Errorf("ShortID contains non base62 rune %q", r)
		}
	}
}

func TestSignatureHelpers(t *testing.T) {
	s := &Signature{Type: "yara", SignatureID: "abc", Revision: 2, Source: "src"}
	if got := s.Key(); got != "yara_abc_2" {
		t.Errorf("Key() = %q", got)
	}
	if got := s.BundlePath(); got != "yara/src" {
		t.Errorf("BundlePath() = %q", got)
	}
	if got := s.MissingFields(); strings.Join(got, ",") != "name,data" {
		t.Errorf("MissingFields() = %v", got)
	}

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.StatusChange(StatusDisabled, "alice", at)
	if s.Status != StatusDisabled || s.StateChangeUser != "alice" || !s.StateChangeDate.Equal(at) {
		t.Errorf("StatusChange() not applied: %+v", s)
	}
}

func TestWithDelta(t *testing.T) {
	base := &Service{
		Name: "Yara",
		UpdateConfig: &UpdateConfig{
			GeneratesSignatures: true,
			Sources:             []Source{{Name: "a", URI: "http://a"}},
		},
	}

	merged := WithDelta(base, nil)
	merged.UpdateConfig.Sources[0].Name = "changed"
	if base.UpdateConfig.Sources[0].Name != "a" {
		t.Fatal("WithDelta must not alias the base sources")
	}

	merged = WithDelta(base, &ServiceDelta{UpdateConfig: &DeltaUpdateConfig{Sources: []Source{}}})
	if len(merged.Sources()) != 0 {
		t.Errorf("empty delta list must replace base list, got %v", merged.Sources())
	}
	if !merged.GeneratesSignatures() {
		t.Error("delta must keep generates_signatures from base")
	}

	plain := WithDelta(&Service{Name: "Extract"}, &ServiceDelta{UpdateConfig: &DeltaUpdateConfig{Sources: []Source{{Name: "x"}}}})
	if plain.GeneratesSignatures() {
		t.Error("service without update config must not generate signatures")
	}
	if IndexSource(plain.Sources(), "x") != 0 || IndexSource(plain.Sources(), "y") != -1 {
		t.Error("IndexSource() mismatch")
	}
}

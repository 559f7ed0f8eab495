package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultDefinition())
	require.NoError(t, err)
	return e
}

func TestIsAccessible(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name string
		user string
		doc  string
		want bool
	}{
		{"same level", "U", "U", true},
		{"higher clearance", "SECRET", "RESTRICTED", true},
		{"lower clearance", "R", "S", false},
		{"empty doc is unrestricted", "U", "", true},
		{"missing required marking", "S", "R//LE", false},
		{"holds required marking", "S//LE", "R//LEGAL", true},
		{"shares a group", "R//REL TO A, B", "R//REL TO GROUP_B", true},
		{"no shared group", "R//REL TO A", "R//REL TO B", false},
		{"no groups on user", "S", "U//REL TO A", false},
		{"unknown doc level fails closed", "S", "TOP", false},
		{"unknown user level fails closed", "ROOT", "U", false},
		{"case insensitive", "restricted", "u", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsAccessible(tt.user, tt.doc))
		})
	}
}

func TestIsAccessibleNotEnforced(t *testing.T) {
	def := DefaultDefinition()
	def.Enforce = false
	e, err := New(def)
	require.NoError(t, err)

	assert.True(t, e.IsAccessible("U", "S//LE//REL TO A"))
	assert.False(t, e.Enforced())
}

func TestNormalize(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, "R//LE//REL TO A, B", e.Normalize("restricted//legal//REL TO GROUP_B, A"))
	assert.Equal(t, "U", e.Normalize(""))
	assert.Equal(t, "garbage", e.Normalize("garbage"))
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	_, err := New(Definition{})
	assert.Error(t, err)

	def := DefaultDefinition()
	def.Levels = append(def.Levels, Level{Name: "UNRESTRICTED", Short: "X", Value: 1})
	_, err = New(def)
	assert.ErrorContains(t, err, "duplicate level")

	def = DefaultDefinition()
	def.Unrestricted = "NOPE"
	_, err = New(def)
	assert.ErrorContains(t, err, "unrestricted")
}

func TestUnrestrictedDefaultsToLowestLevel(t *testing.T) {
	def := DefaultDefinition()
	def.Unrestricted = ""
	e, err := New(def)
	require.NoError(t, err)
	assert.Equal(t, "U", e.Unrestricted())
}

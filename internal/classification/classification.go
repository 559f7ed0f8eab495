// Package classification evaluates document classification markings against a
// caller's clearance.
//
// A classification string looks like "RESTRICTED//LE//REL TO GROUP_A, GROUP_B":
// the first part is a level, "REL TO" parts list release groups and any other
// part holds required markings separated by "/". Level, marking and group
// names are matched case-insensitively against their name, short name or
// aliases.
package classification

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Level is an ordered clearance level.
type Level struct {
	Name    string   `yaml:"name"`
	Short   string   `yaml:"short_name"`
	Aliases []string `yaml:"aliases"`
	Value   int      `yaml:"lvl"`
}

// Marking is a required marking or a release group.
type Marking struct {
	Name    string   `yaml:"name"`
	Short   string   `yaml:"short_name"`
	Aliases []string `yaml:"aliases"`
}

// Definition is the configured classification scheme.
type Definition struct {
	Enforce      bool      `yaml:"enforce"`
	Levels       []Level   `yaml:"levels"`
	Required     []Marking `yaml:"required"`
	Groups       []Marking `yaml:"groups"`
	Unrestricted string    `yaml:"unrestricted"`
	Restricted   string    `yaml:"restricted"`
}

// DefaultDefinition is used when no settings file overrides it.
func DefaultDefinition() Definition {
	return Definition{
		Enforce: true,
		Levels: []Level{
			{Name: "UNRESTRICTED", Short: "U", Value: 100},
			{Name: "RESTRICTED", Short: "R", Value: 200},
			{Name: "SECRET", Short: "S", Value: 300},
		},
		Required: []Marking{
			{Name: "LEGAL", Short: "LE"},
		},
		Groups: []Marking{
			{Name: "GROUP_A", Short: "A"},
			{Name: "GROUP_B", Short: "B"},
		},
		Unrestricted: "U",
		Restricted:   "S//LE",
	}
}

// Parsed is a decoded classification.
type Parsed struct {
	Level    Level
	Required []string // short names, sorted
	Groups   []string // short names, sorted
}

// Engine evaluates classifications for a Definition. It is safe for
// concurrent use: nothing is mutated after New.
type Engine struct {
	def      Definition
	levels   map[string]Level
	required map[string]string
	groups   map[string]string
}

// New validates def and builds an Engine.
func New(def Definition) (*Engine, error) {
	if len(def.Levels) == 0 {
		return nil, fmt.Errorf("classification: at least one level is required")
	}

	e := &Engine{
		def:      def,
		levels:   make(map[string]Level),
		required: make(map[string]string),
		groups:   make(map[string]string),
	}

	for _, lvl := range def.Levels {
		if lvl.Name == "" || lvl.Short == "" {
			return nil, fmt.Errorf("classification: level needs name and short_name: %+v", lvl)
		}
		for _, key := range names(lvl.Name, lvl.Short, lvl.Aliases) {
			if _, dup := e.levels[key]; dup {
				return nil, fmt.Errorf("classification: duplicate level name %q", key)
			}
			e.levels[key] = lvl
		}
	}
	if err := index(e.required, def.Required, "required marking"); err != nil {
		return nil, err
	}
	if err := index(e.groups, def.Groups, "group"); err != nil {
		return nil, err
	}

	if e.def.Unrestricted == "" {
		lowest := slices.MinFunc(def.Levels, func(a, b Level) int { return a.Value - b.Value })
		e.def.Unrestricted = lowest.Short
	}
	if _, err := e.Parse(e.def.Unrestricted); err != nil {
		return nil, fmt.Errorf("classification: invalid unrestricted value: %w", err)
	}
	if e.def.Restricted != "" {
		if _, err := e.Parse(e.def.Restricted); err != nil {
			return nil, fmt.Errorf("classification: invalid restricted value: %w", err)
		}
	}

	return e, nil
}

func index(dst map[string]string, markings []Marking, what string) error {
	for _, m := range markings {
		if m.Name == "" || m.Short == "" {
			return fmt.Errorf("classification: %s needs name and short_name: %+v", what, m)
		}
		for _, key := range names(m.Name, m.Short, m.Aliases) {
			if _, dup := dst[key]; dup {
				return fmt.Errorf("classification: duplicate %s %q", what, key)
			}
			dst[key] = strings.ToUpper(m.Short)
		}
	}
	return nil
}

func names(name, short string, aliases []string) []string {
	out := []string{strings.ToUpper(name), strings.ToUpper(short)}
	for _, a := range aliases {
		out = append(out, strings.ToUpper(a))
	}
	return slices.Compact(out)
}

// Unrestricted is the classification applied to documents that carry none.
func (e *Engine) Unrestricted() string { return e.def.Unrestricted }

// Enforced reports whether access checks are active.
func (e *Engine) Enforced() bool { return e.def.Enforce }

// Parse decodes c. An empty string is the unrestricted classification.
func (e *Engine) Parse(c string) (Parsed, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		c = e.def.Unrestricted
	}

	parts := strings.Split(c, "//")
	lvl, ok := e.levels[strings.ToUpper(strings.TrimSpace(parts[0]))]
	if !ok {
		return Parsed{}, fmt.Errorf("unknown classification level %q", parts[0])
	}

	p := Parsed{Level: lvl}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		upper := strings.ToUpper(part)
		if strings.HasPrefix(upper, "REL TO ") || strings.HasPrefix(upper, "REL ") {
			list := strings.TrimPrefix(strings.TrimPrefix(upper, "REL TO "), "REL ")
			for _, g := range strings.Split(list, ",") {
				g = strings.TrimSpace(g)
				if g == "" {
					continue
				}
				short, ok := e.groups[g]
				if !ok {
					return Parsed{}, fmt.Errorf("unknown classification group %q", g)
				}
				p.Groups = append(p.Groups, short)
			}
			continue
		}
		for _, r := range strings.Split(upper, "/") {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			short, ok := e.required[r]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown classification marking %q", r)
			}
			p.Required = append(p.Required, short)
		}
	}

	sort.Strings(p.Required)
	sort.Strings(p.Groups)
	p.Required = slices.Compact(p.Required)
	p.Groups = slices.Compact(p.Groups)
	return p, nil
}

// Normalize returns the canonical short form of c, or c unchanged when it
// cannot be parsed.
func (e *Engine) Normalize(c string) string {
	p, err := e.Parse(c)
	if err != nil {
		return c
	}
	return p.String()
}

func (p Parsed) String() string {
	out := p.Level.Short
	if len(p.Required) > 0 {
		out += "//" + strings.Join(p.Required, "/")
	}
	if len(p.Groups) > 0 {
		out += "//REL TO " + strings.Join(p.Groups, ", ")
	}
	return out
}

// IsAccessible reports whether a caller cleared for user may read a document
// classified doc. Unparsable input on either side denies access.
func (e *Engine) IsAccessible(user, doc string) bool {
	if !e.def.Enforce {
		return true
	}

	u, err := e.Parse(user)
	if err != nil {
		return false
	}
	d, err := e.Parse(doc)
	if err != nil {
		return false
	}

	if u.Level.Value < d.Level.Value {
		return false
	}
	for _, r := range d.Required {
		if !slices.Contains(u.Required, r) {
			return false
		}
	}
	if len(d.Groups) == 0 {
		return true
	}
	for _, g := range d.Groups {
		if slices.Contains(u.Groups, g) {
			return true
		}
	}
	return false
}

package datastore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Node is a parsed query predicate evaluated against a decoded document.
type Node interface {
	Match(doc map[string]any) bool
}

type matchAll struct{}

func (matchAll) Match(map[string]any) bool { return true }

type andNode []Node

func (n andNode) Match(doc map[string]any) bool {
	for _, c := range n {
		if !c.Match(doc) {
			return false
		}
	}
	return true
}

type orNode []Node

func (n orNode) Match(doc map[string]any) bool {
	for _, c := range n {
		if c.Match(doc) {
			return true
		}
	}
	return false
}

type notNode struct{ n Node }

func (n notNode) Match(doc map[string]any) bool { return !n.n.Match(doc) }

type termKind int

const (
	termExact termKind = iota
	termWildcard
	termFuzzy
	termExists
)

type termNode struct {
	field string
	value string
	kind  termKind
	re    *regexp.Regexp
}

func (t *termNode) Match(doc map[string]any) bool {
	values := Lookup(doc, t.field)
	if t.kind == termExists {
		return len(values) > 0
	}
	for _, v := range values {
		s := formatValue(v)
		switch t.kind {
		case termExact:
			if s == t.value {
				return true
			}
		case termWildcard:
			if t.re.MatchString(s) {
				return true
			}
		case termFuzzy:
			if fuzzyMatch(t.value, s) {
				return true
			}
		}
	}
	return false
}

// Quote renders v as a quoted query value.
func Quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// Parse compiles a query. Supported syntax:
//
//	field:value  field:"quoted value"  field:pre*  field:fuzzy~  field:*
//	a AND b  a OR b  NOT a  a b (implicit AND)  ( ... )  *  *:*
//
// AND binds tighter than OR.
func Parse(q string) (Node, error) {
	toks, err := tokenize(q)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty query")
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.toks[p.pos].text, p.pos)
	}
	return n, nil
}

type tokKind int

const (
	tokWord tokKind = iota
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func tokenize(q string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(q) {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		default:
			var sb strings.Builder
			for i < len(q) {
				c = q[i]
				if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' {
					break
				}
				if c == '\\' && i+1 < len(q) {
					sb.WriteByte(q[i])
					sb.WriteByte(q[i+1])
					i += 2
					continue
				}
				if c == '"' {
					end := i + 1
					for end < len(q) && q[end] != '"' {
						if q[end] == '\\' {
							end++
						}
						end++
					}
					if end >= len(q) {
						return nil, fmt.Errorf("unterminated quote in query")
					}
					sb.WriteString(q[i : end+1])
					i = end + 1
					continue
				}
				sb.WriteByte(c)
				i++
			}
			toks = append(toks, token{kind: tokWord, text: sb.String()})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peekWord(w string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == tokWord && p.toks[p.pos].text == w
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	nodes := orNode{first}
	for p.peekWord("OR") {
		p.pos++
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return first, nil
	}
	return nodes, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	nodes := andNode{first}
	for p.pos < len(p.toks) {
		if p.peekWord("AND") {
			p.pos++
		} else if p.peekWord("OR") || p.toks[p.pos].kind == tokRParen {
			break
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return first, nil
	}
	return nodes, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peekWord("NOT") {
		p.pos++
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{n}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("unexpected end of query")
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokLParen:
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return n, nil
	case tokRParen:
		return nil, fmt.Errorf("unexpected ')'")
	}
	p.pos++
	if t.text == "AND" || t.text == "OR" {
		return nil, fmt.Errorf("unexpected operator %s", t.text)
	}
	return parseTerm(t.text)
}

func parseTerm(word string) (Node, error) {
	if word == "*" || word == "*:*" {
		return matchAll{}, nil
	}

	sep := indexUnescaped(word, ':')
	if sep <= 0 {
		return nil, fmt.Errorf("expected field:value, got %q", word)
	}
	field := unescape(word[:sep])
	raw := word[sep+1:]
	if raw == "" {
		return nil, fmt.Errorf("missing value for field %q", field)
	}

	if strings.HasPrefix(raw, `"`) {
		if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
			return nil, fmt.Errorf("malformed quoted value for field %q", field)
		}
		return &termNode{field: field, value: unescape(raw[1 : len(raw)-1]), kind: termExact}, nil
	}

	if raw == "*" {
		return &termNode{field: field, kind: termExists}, nil
	}

	if strings.HasSuffix(raw, "~") && !strings.HasSuffix(raw, `\~`) {
		return &termNode{field: field, value: unescape(strings.TrimSuffix(raw, "~")), kind: termFuzzy}, nil
	}

	if hasUnescapedWildcard(raw) {
		re, err := globToRegexp(raw)
		if err != nil {
			return nil, err
		}
		return &termNode{field: field, value: raw, kind: termWildcard, re: re}, nil
	}

	return &termNode{field: field, value: unescape(raw), kind: termExact}, nil
}

func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

func hasUnescapedWildcard(s string) bool {
	return indexUnescaped(s, '*') >= 0 || indexUnescaped(s, '?') >= 0
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func globToRegexp(glob string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '\\':
			if i+1 < len(glob) {
				i++
				sb.WriteString(regexp.QuoteMeta(string(glob[i])))
			}
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// Lookup resolves a dotted path in doc, flattening arrays on the way.
func Lookup(doc map[string]any, path string) []any {
	current := []any{doc}
	for _, part := range strings.Split(path, ".") {
		var next []any
		for _, v := range current {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			child, ok := m[part]
			if !ok || child == nil {
				continue
			}
			next = append(next, flatten(child)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func flatten(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return []any{v}
	}
	var out []any
	for _, e := range arr {
		out = append(out, flatten(e)...)
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// fuzzyMatch applies the AUTO edit distance rule: exact for terms of up to
// two characters, one edit up to five, two edits beyond.
func fuzzyMatch(term, candidate string) bool {
	n := utf8.RuneCountInString(term)
	allowed := 2
	switch {
	case n <= 2:
		allowed = 0
	case n <= 5:
		allowed = 1
	}
	return levenshtein([]rune(term), []rune(candidate), allowed) <= allowed
}

func levenshtein(a, b []rune, limit int) int {
	if d := len(a) - len(b); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

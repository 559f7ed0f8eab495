// Package datastore exposes typed document collections with search, streaming
// and field statistics on top of a raw key/value Backend.
//
// Search evaluates the query in process over every document of the
// collection. It is meant for the modest collections this service owns
// (signatures, services, submissions metadata), not as a search engine.
package datastore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Backend stores raw JSON documents per collection.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, bool, error)
	MGet(ctx context.Context, collection string, ids []string) ([][]byte, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) (bool, error)
	IDs(ctx context.Context, collection string) ([]string, error)
}

// AccessFunc reports whether a caller scope may read a document classification.
type AccessFunc func(scope, classification string) bool

// SearchRequest describes a paged search.
type SearchRequest struct {
	Query   string
	Filters []string
	Sort    string // "field asc" or "field desc"
	Offset  int
	Rows    int
	Access  string // caller access scope, empty means unfiltered
}

// SearchResult is one page of matches.
type SearchResult[T any] struct {
	Items  []*T `json:"items"`
	Count  int  `json:"count"`
	Offset int  `json:"offset"`
	Rows   int  `json:"rows"`
	Total  int  `json:"total"`
}

// FieldStats summarises a numeric field over matching documents.
type FieldStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
}

// DefaultRows is used when a search does not set Rows.
const DefaultRows = 25

// Collection is a typed view over one backend collection.
type Collection[T any] struct {
	name    string
	backend Backend
	access  AccessFunc
}

// NewCollection binds a collection name to a backend. access may be nil, in
// which case no classification filtering is applied.
func NewCollection[T any](name string, backend Backend, access AccessFunc) *Collection[T] {
	return &Collection[T]{name: name, backend: backend, access: access}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get returns the document stored under id or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	data, ok, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return &doc, nil
}

// MultiGet returns the documents found for ids, in order, skipping missing ones.
func (c *Collection[T]) MultiGet(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raws, err := c.backend.MGet(ctx, c.name, ids)
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", c.name, err)
	}
	out := make([]*T, 0, len(raws))
	for i, data := range raws {
		if data == nil {
			continue
		}
		var doc T
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, ids[i], err)
		}
		out = append(out, &doc)
	}
	return out, nil
}

// Save stores doc under id, replacing any previous version.
func (c *Collection[T]) Save(ctx context.Context, id string, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	if err := c.backend.Put(ctx, c.name, id, data); err != nil {
		return fmt.Errorf("save %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Delete removes the document and reports whether it existed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.backend.Delete(ctx, c.name, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return ok, nil
}

type hit struct {
	id  string
	doc map[string]any
}

// scan yields every document matching all predicates and readable by access.
func (c *Collection[T]) scan(ctx context.Context, preds []Node, access string) iter.Seq2[hit, error] {
	return func(yield func(hit, error) bool) {
		ids, err := c.backend.IDs(ctx, c.name)
		if err != nil {
			yield(hit{}, fmt.Errorf("list %s: %w", c.name, err))
			return
		}
		const batch = 256
		for start := 0; start < len(ids); start += batch {
			if err := ctx.Err(); err != nil {
				yield(hit{}, err)
				return
			}
			chunk := ids[start:min(start+batch, len(ids))]
			raws, err := c.backend.MGet(ctx, c.name, chunk)
			if err != nil {
				yield(hit{}, fmt.Errorf("mget %s: %w", c.name, err))
				return
			}
			for i, raw := range raws {
				if raw == nil {
					continue
				}
				var doc map[string]any
				if err := json.Unmarshal(raw, &doc); err != nil {
					yield(hit{}, fmt.Errorf("decode %s/%s: %w", c.name, chunk[i], err))
					return
				}
				doc["id"] = chunk[i]
				if !c.readable(doc, access) || !matchAllNodes(preds, doc) {
					continue
				}
				if !yield(hit{id: chunk[i], doc: doc}, nil) {
					return
				}
			}
		}
	}
}

// decodeHit re-encodes the scanned document so the injected id reaches T.
func (c *Collection[T]) decodeHit(h hit) (*T, error) {
	raw, err := json.Marshal(h.doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", c.name, h.id, err)
	}
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, h.id, err)
	}
	return &doc, nil
}

func (c *Collection[T]) readable(doc map[string]any, access string) bool {
	if access == "" || c.access == nil {
		return true
	}
	cls, _ := doc["classification"].(string)
	return c.access(access, cls)
}

func matchAllNodes(preds []Node, doc map[string]any) bool {
	for _, p := range preds {
		if !p.Match(doc) {
			return false
		}
	}
	return true
}

func compile(query string, filters []string) ([]Node, error) {
	if strings.TrimSpace(query) == "" {
		query = "*"
	}
	preds := make([]Node, 0, 1+len(filters))
	q, err := Parse(query)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", query, err)
	}
	preds = append(preds, q)
	for _, f := range filters {
		n, err := Parse(f)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", f, err)
		}
		preds = append(preds, n)
	}
	return preds, nil
}

// Search runs a paged, sorted query.
func (c *Collection[T]) Search(ctx context.Context, req SearchRequest) (*SearchResult[T], error) {
	preds, err := compile(req.Query, req.Filters)
	if err != nil {
		return nil, err
	}
	sortField, desc, err := parseSort(req.Sort)
	if err != nil {
		return nil, err
	}

	var hits []hit
	for h, err := range c.scan(ctx, preds, req.Access) {
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	if sortField != "" {
		slices.SortStableFunc(hits, func(a, b hit) int {
			return compareField(a.doc, b.doc, sortField, desc)
		})
	}

	rows := req.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	offset := max(req.Offset, 0)

	res := &SearchResult[T]{Offset: offset, Rows: rows, Total: len(hits), Items: []*T{}}
	if offset < len(hits) {
		for _, h := range hits[offset:min(offset+rows, len(hits))] {
			doc, err := c.decodeHit(h)
			if err != nil {
				return nil, err
			}
			res.Items = append(res.Items, doc)
		}
	}
	res.Count = len(res.Items)
	return res, nil
}

// Stream yields every matching document readable by access. Each call starts
// a fresh scan.
func (c *Collection[T]) Stream(ctx context.Context, query, access string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		preds, err := compile(query, nil)
		if err != nil {
			yield(nil, err)
			return
		}
		for h, err := range c.scan(ctx, preds, access) {
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := c.decodeHit(h)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// StreamIDs yields the ids of every matching document readable by access.
func (c *Collection[T]) StreamIDs(ctx context.Context, query, access string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		preds, err := compile(query, nil)
		if err != nil {
			yield("", err)
			return
		}
		for h, err := range c.scan(ctx, preds, access) {
			if !yield(h.id, err) || err != nil {
				return
			}
		}
	}
}

// Stats computes count/min/max/avg of a numeric field over matching documents.
func (c *Collection[T]) Stats(ctx context.Context, field, query string) (FieldStats, error) {
	preds, err := compile(query, nil)
	if err != nil {
		return FieldStats{}, err
	}

	var st FieldStats
	for h, err := range c.scan(ctx, preds, "") {
		if err != nil {
			return FieldStats{}, err
		}
		for _, v := range Lookup(h.doc, field) {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			if st.Count == 0 {
				st.Min, st.Max = f, f
			}
			st.Count++
			st.Sum += f
			st.Min = math.Min(st.Min, f)
			st.Max = math.Max(st.Max, f)
		}
	}
	if st.Count > 0 {
		st.Avg = st.Sum / float64(st.Count)
	}
	return st, nil
}

func parseSort(s string) (field string, desc bool, err error) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 0:
		return "", false, nil
	case 1:
		return parts[0], false, nil
	case 2:
		switch strings.ToLower(parts[1]) {
		case "asc":
			return parts[0], false, nil
		case "desc":
			return parts[0], true, nil
		}
	}
	return "", false, fmt.Errorf("invalid sort %q", s)
}

// compareField orders documents by the first value of field. Documents
// missing the field sort last in both directions.
func compareField(a, b map[string]any, field string, desc bool) int {
	va, vb := Lookup(a, field), Lookup(b, field)
	switch {
	case len(va) == 0 && len(vb) == 0:
		return 0
	case len(va) == 0:
		return 1
	case len(vb) == 0:
		return -1
	}
	var r int
	fa, okA := toFloat(va[0])
	fb, okB := toFloat(vb[0])
	if okA && okB {
		r = cmp.Compare(fa, fb)
	} else {
		r = cmp.Compare(formatValue(va[0]), formatValue(vb[0]))
	}
	if desc {
		return -r
	}
	return r
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

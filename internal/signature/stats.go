package signature

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
)

// Stat summarises the result scores a signature contributed to.
type Stat struct {
	ID             string `json:"id"`
	Source         string `json:"source"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Classification string `json:"classification"`
	Count          int64  `json:"count"`
	Min            int    `json:"min"`
	Max            int    `json:"max"`
	Avg            int    `json:"avg"`
}

// Statistics returns hit statistics for every signature u may read, sorted
// by type.
func (m *Manager) Statistics(ctx context.Context, u *auth.User) ([]Stat, error) {
	var stats []Stat
	for sig, err := range m.stores.Signatures.Stream(ctx, "name:*", u.Access) {
		if err != nil {
			return nil, err
		}
		stats = append(stats, Stat{
			ID:             sig.ID,
			Source:         sig.Source,
			Name:           sig.Name,
			Type:           sig.Type,
			Classification: sig.Classification,
		})
	}
	slices.SortFunc(stats, func(a, b Stat) int { return strings.Compare(a.ID, b.ID) })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.cfg.StatsWorkers, 1))
	for i := range stats {
		g.Go(func() error {
			s := &stats[i]
			query := fmt.Sprintf("result.sections.tags.file.rule.%s:%s", s.Type, datastore.Quote(s.Source+"."+s.Name))
			fs, err := m.stores.Results.Stats(gctx, "result.score", query)
			if err != nil {
				return fmt.Errorf("stats for %s: %w", s.ID, err)
			}
			s.Count = fs.Count
			if fs.Count > 0 {
				s.Min, s.Max, s.Avg = int(fs.Min), int(fs.Max), int(fs.Avg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(stats, func(a, b Stat) int { return strings.Compare(a.Type, b.Type) })
	if stats == nil {
		stats = []Stat{}
	}
	return stats, nil
}

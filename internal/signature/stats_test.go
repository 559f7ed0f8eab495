package signature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/domain"
)

func ruleHit(sigType, rule string) domain.ResultSection {
	return domain.ResultSection{Tags: map[string]any{
		"file": map[string]any{"rule": map[string]any{sigType: []string{rule}}},
	}}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, "y_evil", domain.Signature{Name: "evil", Type: "yara", Source: "src", Classification: "U"})
	f.put(t, "a_quiet", domain.Signature{Name: "quiet", Type: "yara", Source: "src", Classification: "U"})
	f.put(t, "s_net", domain.Signature{Name: "net", Type: "suricata", Source: "et", Classification: "U"})
	f.put(t, "z_secret", domain.Signature{Name: "secret", Type: "yara", Source: "src", Classification: "S"})

	results := []domain.Result{
		{SHA256: "1", Result: domain.ResultBody{Score: 100, Sections: []domain.ResultSection{ruleHit("yara", "src.evil")}}},
		{SHA256: "2", Result: domain.ResultBody{Score: 500, Sections: []domain.ResultSection{ruleHit("yara", "src.evil")}}},
		{SHA256: "3", Result: domain.ResultBody{Score: 1000, Sections: []domain.ResultSection{ruleHit("suricata", "et.net")}}},
	}
	for i := range results {
		require.NoError(t, f.m.stores.Results.Save(ctx, results[i].SHA256+".svc", &results[i]))
	}

	stats, err := f.m.Statistics(ctx, guest)
	require.NoError(t, err)
	require.Len(t, stats, 3, "secret signature is not readable")

	assert.Equal(t, Stat{ID: "s_net", Source: "et", Name: "net", Type: "suricata", Classification: "U", Count: 1, Min: 1000, Max: 1000, Avg: 1000}, stats[0])
	assert.Equal(t, Stat{ID: "a_quiet", Source: "src", Name: "quiet", Type: "yara", Classification: "U"}, stats[1])
	assert.Equal(t, Stat{ID: "y_evil", Source: "src", Name: "evil", Type: "yara", Classification: "U", Count: 2, Min: 100, Max: 500, Avg: 300}, stats[2])
}

func TestStatisticsEmpty(t *testing.T) {
	f := newFixture(t)
	stats, err := f.m.Statistics(context.Background(), guest)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

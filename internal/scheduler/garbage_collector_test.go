package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/index"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

func newCollections() (*datastore.Collection[domain.Service], *datastore.Collection[domain.ServiceDelta]) {
	idx := index.NewMemoryIndex()
	return datastore.NewCollection[domain.Service]("service", idx, nil),
		datastore.NewCollection[domain.ServiceDelta]("service_delta", idx, nil)
}

func TestGarbageCollector_Collect(t *testing.T) {
	ctx := context.Background()
	services, deltas := newCollections()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recently := now.Add(-10 * 24 * time.Hour) // removed 10 days ago
	long := now.Add(-35 * 24 * time.Hour)     // removed 35 days ago

	for _, svc := range []*domain.Service{
		{Name: "active", Enabled: true},
		{Name: "recently-removed", RemovedAt: &recently},
		{Name: "old-removed", RemovedAt: &long},
	} {
		if err := services.Save(ctx, svc.Name, svc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	delta := &domain.ServiceDelta{UpdateConfig: &domain.DeltaUpdateConfig{}}
	if err := deltas.Save(ctx, "old-removed", delta); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gc := NewGarbageCollector(services, deltas, logger.NewNop(), 24*time.Hour, 30*24*time.Hour)
	gc.now = func() time.Time { return now }

	deleted, err := gc.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 service deleted, got %d", deleted)
	}

	for _, name := range []string{"active", "recently-removed"} {
		if _, err := services.Get(ctx, name); err != nil {
			t.Errorf("Service %s was incorrectly removed: %v", name, err)
		}
	}
	if _, err := services.Get(ctx, "old-removed"); !errors.Is(err, datastore.ErrNotFound) {
		t.Errorf("Old removed service was not deleted: %v", err)
	}
	if _, err := deltas.Get(ctx, "old-removed"); !errors.Is(err, datastore.ErrNotFound) {
		t.Errorf("Delta of old removed service was not deleted: %v", err)
	}
}

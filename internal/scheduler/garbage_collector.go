package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

const (
	// DefaultGCThreshold is the duration after which removed services are deleted
	DefaultGCThreshold = 30 * 24 * time.Hour // 30 days
)

// GarbageCollector deletes services that have been missing from the catalog
// for longer than the threshold, together with their user edits.
type GarbageCollector struct {
	services  *datastore.Collection[domain.Service]
	deltas    *datastore.Collection[domain.ServiceDelta]
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
	now       func() time.Time
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	services *datastore.Collection[domain.Service],
	deltas *datastore.Collection[domain.ServiceDelta],
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}

	return &GarbageCollector{
		services:  services,
		deltas:    deltas,
		logger:    log.Named("gc"),
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if _, err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed", logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed", logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect removes expired services and returns how many were deleted.
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	gc.logger.Debug("running garbage collection for removed services")

	now := gc.now()
	var expired []*domain.Service
	for svc, err := range gc.services.Stream(ctx, "removed_at:*", "") {
		if err != nil {
			return 0, err
		}
		if now.Sub(*svc.RemovedAt) >= gc.threshold {
			expired = append(expired, svc)
		}
	}

	deleted := 0
	for _, svc := range expired {
		if _, err := gc.services.Delete(ctx, svc.Name); err != nil {
			gc.logger.Warn("failed to delete service",
				logger.String("service", svc.Name),
				logger.Error(err))
			continue
		}
		// Best effort: a leftover delta is harmless without its service.
		if _, err := gc.deltas.Delete(ctx, svc.Name); err != nil {
			gc.logger.Warn("failed to delete service delta",
				logger.String("service", svc.Name),
				logger.Error(err))
		}

		gc.logger.Info("garbage collected removed service",
			logger.String("service", svc.Name),
			logger.String("removed_for", now.Sub(*svc.RemovedAt).String()))
		deleted++
	}

	if deleted > 0 {
		gc.logger.Info("garbage collection completed", logger.Int("services_deleted", deleted))
	} else {
		gc.logger.Debug("no services to garbage collect")
	}

	return deleted, nil
}

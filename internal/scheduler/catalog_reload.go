package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/sources/catalog"
)

// CatalogStatus describes the last catalog reload.
type CatalogStatus struct {
	Services   int
	LastReload time.Time
	LastError  error
}

// CatalogReloader handles periodic reloading of the service catalog into the
// service collection. User edits live in the delta collection and are never
// touched.
type CatalogReloader struct {
	loader        *catalog.Loader
	services      *datastore.Collection[domain.Service]
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	now           func() time.Time

	mu     sync.RWMutex
	status CatalogStatus
}

// NewCatalogReloader creates a new catalog reloader
func NewCatalogReloader(
	serviceFile string,
	services *datastore.Collection[domain.Service],
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	return &CatalogReloader{
		loader:        catalog.NewLoader(serviceFile),
		services:      services,
		logger:        log.Named("catalog"),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic reload process
func (cr *CatalogReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload service catalog", logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Info("manual reload triggered")
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload service catalog", logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *CatalogReloader) Stop() {
	close(cr.stopCh)
}

// Status returns the outcome of the last reload.
func (cr *CatalogReloader) Status() CatalogStatus {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.status
}

// Reload loads the catalog and writes every service. Services that left the
// catalog are disabled and stamped with RemovedAt; the garbage collector
// deletes them later.
func (cr *CatalogReloader) Reload(ctx context.Context) (err error) {
	defer func() {
		cr.mu.Lock()
		cr.status.LastError = err
		cr.mu.Unlock()
	}()

	cr.logger.Info("reloading service catalog")

	file, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	newServices, err := catalog.MapServices(file)
	if err != nil {
		return fmt.Errorf("failed to map services: %w", err)
	}

	now := cr.now()
	present := make(map[string]bool, len(newServices))
	for _, svc := range newServices {
		present[svc.Name] = true
		if err := cr.services.Save(ctx, svc.Name, svc); err != nil {
			return err
		}
	}

	removed := 0
	for existing, err := range cr.services.Stream(ctx, "*", "") {
		if err != nil {
			return err
		}
		if present[existing.Name] || existing.RemovedAt != nil {
			continue
		}
		existing.Enabled = false
		existing.RemovedAt = &now
		if err := cr.services.Save(ctx, existing.Name, existing); err != nil {
			return err
		}
		removed++
	}

	if removed > 0 {
		cr.logger.Info("marking removed services as disabled", logger.Int("count", removed))
	}
	cr.logger.Info("loaded service catalog", logger.Int("count", len(newServices)))

	cr.mu.Lock()
	cr.status.Services = len(newServices)
	cr.status.LastReload = now
	cr.mu.Unlock()
	return nil
}

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

func TestCatalogReloader_Reload(t *testing.T) {
	ctx := context.Background()
	services, _ := newCollections()

	path := filepath.Join(t.TempDir(), "services.yaml")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write catalog: %v", err)
		}
	}

	write(`
services:
  - name: YARA
    update_config:
      generates_signatures: true
  - name: Suricata
`)
	cr := NewCatalogReloader(path, services, logger.NewNop(), time.Hour, make(chan struct{}, 1))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cr.now = func() time.Time { return now }

	if err := cr.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if st := cr.Status(); st.Services != 2 || !st.LastReload.Equal(now) || st.LastError != nil {
		t.Errorf("Status() = %+v", st)
	}

	// Suricata leaves the catalog.
	write(`
services:
  - name: YARA
    update_config:
      generates_signatures: true
`)
	if err := cr.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	suricata, err := services.Get(ctx, "Suricata")
	if err != nil {
		t.Fatalf("Suricata should be kept until garbage collected: %v", err)
	}
	if suricata.Enabled || suricata.RemovedAt == nil || !suricata.RemovedAt.Equal(now) {
		t.Errorf("Suricata = %+v, want disabled and stamped", suricata)
	}
	yara, err := services.Get(ctx, "YARA")
	if err != nil {
		t.Fatalf("Get YARA failed: %v", err)
	}
	if !yara.Enabled || yara.RemovedAt != nil || !yara.GeneratesSignatures() {
		t.Errorf("YARA = %+v", yara)
	}
}

func TestCatalogReloader_ReloadError(t *testing.T) {
	services, _ := newCollections()
	cr := NewCatalogReloader("/nonexistent/services.yaml", services, logger.NewNop(), time.Hour, nil)

	if err := cr.Reload(context.Background()); err == nil {
		t.Fatal("Reload should fail on a missing file")
	}
	if cr.Status().LastError == nil {
		t.Error("Status should carry the last error")
	}
	if err := cr.Start(context.Background()); err == nil {
		t.Error("Start should fail when the initial reload fails")
	}
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helper: minimal file-backed config producing at least one scheduled job
// ─────────────────────────────────────────────────────────────────────────────

func writeTestPaths(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	inventoryPath := filepath.Join(dir, "inventory.csv")
	serverConfigPath := filepath.Join(dir, "config.yaml")

	inventoryCSV := "host,version,community,profile,freqinseconds\n127.0.0.250,2c,public,switches,30\n"
	if err := os.WriteFile(inventoryPath, []byte(inventoryCSV), 0o644); err != nil {
		t.Fatalf("write inventory: %v", err)
	}

	serverYAML := `
profiles:
  switches:
    frequency: 30
    varBinds:
      - ["SNMPv2-MIB", "sysDescr"]
communities:
  public:
    communityIndex: "public"
`
	if err := os.WriteFile(serverConfigPath, []byte(serverYAML), 0o644); err != nil {
		t.Fatalf("write server config: %v", err)
	}

	return Config{
		ConfigPaths: config.Paths{
			Inventory: inventoryPath,
			Server:    serverConfigPath,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNewDefaults(t *testing.T) {
	a := New(Config{}, nil)

	if a.cfg.PollerWorkers != 500 {
		t.Errorf("PollerWorkers = %d, want 500", a.cfg.PollerWorkers)
	}
	if a.cfg.BufferSize != 10_000 {
		t.Errorf("BufferSize = %d, want 10000", a.cfg.BufferSize)
	}
	if a.cfg.EventIndex != "netops" {
		t.Errorf("EventIndex = %q, want netops", a.cfg.EventIndex)
	}
	if a.cfg.MetricIndex != "em_metrics" {
		t.Errorf("MetricIndex = %q, want em_metrics", a.cfg.MetricIndex)
	}
	if a.cfg.MetaIndex != a.cfg.EventIndex {
		t.Errorf("MetaIndex = %q, want it to default to EventIndex %q", a.cfg.MetaIndex, a.cfg.EventIndex)
	}
	if a.cfg.CollectorID == "" {
		t.Error("CollectorID should default to hostname, got empty")
	}
	if a.logger == nil {
		t.Error("logger should never be nil")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := writeTestPaths(t)
	cfg.PollerWorkers = 2
	cfg.BufferSize = 100

	a := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The inventory host (127.0.0.250) will fail to connect — that's fine,
	// we're only verifying the pipeline starts and stops cleanly.
	time.Sleep(200 * time.Millisecond)

	cancel()
	a.Stop()
}

func TestForceRefreshBeforeStartIsNoop(t *testing.T) {
	a := New(Config{}, nil)
	// orch is nil until Start — ForceRefresh must tolerate that.
	a.ForceRefresh()
}

func TestForceRefreshAfterStart(t *testing.T) {
	cfg := writeTestPaths(t)
	cfg.PollerWorkers = 1
	cfg.BufferSize = 10

	a := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop()

	a.ForceRefresh()
}

func TestObjectFamilyAndLastIndexComponent(t *testing.T) {
	if got := objectFamily("IF-MIB::ifEntry"); got != "IF-MIB" {
		t.Errorf("objectFamily = %q, want IF-MIB", got)
	}
	if got := objectFamily("noseparator"); got != "noseparator" {
		t.Errorf("objectFamily = %q, want noseparator", got)
	}
	if got := lastIndexComponent("10.0.0.1.5"); got != "5" {
		t.Errorf("lastIndexComponent = %q, want 5", got)
	}
	if got := lastIndexComponent("0"); got != "0" {
		t.Errorf("lastIndexComponent = %q, want 0", got)
	}
}

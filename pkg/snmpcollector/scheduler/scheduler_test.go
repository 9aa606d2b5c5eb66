package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/poller"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/scheduler"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/store"
	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock JobSubmitter
// ─────────────────────────────────────────────────────────────────────────────

type mockSubmitter struct {
	mu       sync.Mutex
	jobs     []poller.PollJob
	capacity int // 0 = unlimited
}

func newMockSubmitter(capacity int) *mockSubmitter {
	return &mockSubmitter{capacity: capacity}
}

func (m *mockSubmitter) Submit(job poller.PollJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockSubmitter) TrySubmit(job poller.PollJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity > 0 && len(m.jobs) >= m.capacity {
		return false
	}
	m.jobs = append(m.jobs, job)
	return true
}

func (m *mockSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Mock direct Poller — used for the realtime liveness task
// ─────────────────────────────────────────────────────────────────────────────

type mockPoller struct {
	mu    sync.Mutex
	calls int
	raw   decoder.RawPollResult
	err   error
}

func (m *mockPoller) Poll(ctx context.Context, job poller.PollJob) (decoder.RawPollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.raw, m.err
}

// ─────────────────────────────────────────────────────────────────────────────
// ResolvePollJobs / ResolveOneTimeWalkJob / ResolveLivenessJob
// ─────────────────────────────────────────────────────────────────────────────

func TestResolvePollJobsOnePerVarBind(t *testing.T) {
	rec := models.InventoryRecord{Host: "10.0.0.1", Version: "2c", Credential: "public", Profile: "switches"}
	profile := models.Profile{
		Name: "switches",
		VarBinds: []models.VarBindSelector{
			{Kind: models.SelectorGet, OID: "1.3.6.1.2.1.1.1.0", Name: "sysDescr"},
			{Kind: models.SelectorBulk, OID: "1.3.6.1.2.1.2.2.1.10", Name: "ifInOctets"},
		},
	}
	communities := map[string]config.CommunityConfig{}
	usernames := map[string]config.UsernameConfig{}

	jobs, err := scheduler.ResolvePollJobs(rec, profile, communities, usernames, nil)
	if err != nil {
		t.Fatalf("ResolvePollJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		if j.Hostname != rec.EntryKey() {
			t.Errorf("job hostname = %q, want %q", j.Hostname, rec.EntryKey())
		}
		if j.DeviceConfig.Community != "public" {
			t.Errorf("job community = %q, want public", j.DeviceConfig.Community)
		}
	}
}

func TestResolvePollJobsUnknownV3User(t *testing.T) {
	rec := models.InventoryRecord{Host: "10.0.0.1", Version: "3", Credential: "ghost", Profile: "p"}
	profile := models.Profile{Name: "p", VarBinds: []models.VarBindSelector{{Kind: models.SelectorGet, OID: "1.2.3.0"}}}
	_, err := scheduler.ResolvePollJobs(rec, profile, nil, map[string]config.UsernameConfig{}, nil)
	if err == nil {
		t.Fatal("expected error for unknown v3 username")
	}
}

func TestResolveOneTimeWalkJobRootsAtFullSubtree(t *testing.T) {
	rec := models.InventoryRecord{Host: "10.0.0.2", Version: "2c", Credential: "public", Profile: "x"}
	job, err := scheduler.ResolveOneTimeWalkJob(rec, map[string]config.CommunityConfig{}, map[string]config.UsernameConfig{})
	if err != nil {
		t.Fatalf("ResolveOneTimeWalkJob: %v", err)
	}
	if poller.LowestCommonOID(job.ObjectDef) != "1.3.6.1" {
		t.Errorf("walk root = %q, want 1.3.6.1", poller.LowestCommonOID(job.ObjectDef))
	}
}

func TestResolveLivenessJobCarriesThreeAttributes(t *testing.T) {
	rec := models.InventoryRecord{Host: "10.0.0.3", Version: "2c", Credential: "public", Profile: "x"}
	job, err := scheduler.ResolveLivenessJob(rec, map[string]config.CommunityConfig{}, map[string]config.UsernameConfig{})
	if err != nil {
		t.Fatalf("ResolveLivenessJob: %v", err)
	}
	want := []string{"sysUpTimeInstance", "sysDescr", "sysObjectID"}
	for _, name := range want {
		if _, ok := job.ObjectDef.Attributes[name]; !ok {
			t.Errorf("liveness job missing attribute %q", name)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Orchestrator: reconcile_inventory + runPendingJobs, via file-backed config
// ─────────────────────────────────────────────────────────────────────────────

func writeTestConfig(t *testing.T, dir string) (inventoryPath, serverConfigPath string) {
	t.Helper()
	inventoryPath = filepath.Join(dir, "inventory.csv")
	serverConfigPath = filepath.Join(dir, "config.yaml")

	inventoryCSV := "host,version,community,profile,freqinseconds\n10.0.0.1,2c,public,switches,30\n"
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
	return inventoryPath, serverConfigPath
}

func newTestOrchestrator(t *testing.T, submitter scheduler.JobSubmitter) (*scheduler.Orchestrator, store.Adapter) {
	t.Helper()
	dir := t.TempDir()
	inventoryPath, serverConfigPath := writeTestConfig(t, dir)
	st := store.New()
	directPoller := &mockPoller{}
	orch := scheduler.New(scheduler.Options{
		InventoryPath:    inventoryPath,
		ServerConfigPath: serverConfigPath,
	}, st, submitter, directPoller, nil, nil)
	return orch, st
}

func TestOrchestratorReconcileAddsJob(t *testing.T) {
	submitter := newMockSubmitter(0)
	orch, _ := newTestOrchestrator(t, submitter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		orch.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for orch.JobCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if orch.JobCount() == 0 {
		t.Fatal("expected at least one job to be scheduled after reconcile")
	}
	cancel()
	<-done
}

func TestOrchestratorForceRefreshTriggersReconcile(t *testing.T) {
	submitter := newMockSubmitter(0)
	orch, _ := newTestOrchestrator(t, submitter)
	orch.ForceRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for orch.JobCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if orch.JobCount() == 0 {
		t.Fatal("expected reconcile to have run and added a job")
	}
	cancel()
	<-done
}

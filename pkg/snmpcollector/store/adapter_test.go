package store_test

import (
	"sync"
	"testing"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/store"
)

func TestContains_InitiallyFalse(t *testing.T) {
	a := store.New()
	if a.Contains("10.0.0.1:161") {
		t.Fatalf("expected empty store to not contain host")
	}
}

func TestUpsertRealTime_IsIdempotent(t *testing.T) {
	a := store.New()
	a.UpsertRealTime("10.0.0.1:161", map[string]string{"sysDescr": "Linux"})
	a.UpsertRealTime("10.0.0.1:161", map[string]string{"sysDescr": "Linux"})

	data, ok := a.RealTimeData("10.0.0.1:161")
	if !ok || data["sysDescr"] != "Linux" {
		t.Fatalf("expected sysDescr=Linux, got %v ok=%v", data, ok)
	}
}

func TestDeleteStaticFamilies_NeverRemovesIFMIB(t *testing.T) {
	a := store.New()
	rule := models.ExistingVarBindRule{SymbolicName: "ifDescr", DimensionName: "ifDescr"}
	a.UpdateStaticExisting("h1", "IF-MIB", rule, []string{"eth0", "eth1"})
	a.UpdateStaticExisting("h1", "TCP-MIB", rule, []string{"x"})

	a.DeleteStaticFamilies("h1", map[string]bool{"IF-MIB": true, "TCP-MIB": true})

	data, ok := a.StaticData("h1")
	if !ok {
		t.Fatalf("expected static data to remain")
	}
	if _, stillThere := data["IF-MIB"]; !stillThere {
		t.Fatalf("IF-MIB family must never be deleted via DeleteStaticFamilies")
	}
	if _, gone := data["TCP-MIB"]; gone {
		t.Fatalf("TCP-MIB family should have been removed")
	}
}

func TestRewalkQueue_DrainIsExhaustive(t *testing.T) {
	a := store.New()
	a.EnqueueRewalk("h1", "2c", "public")
	a.EnqueueRewalk("h2", "2c", "public")

	entries := a.DequeueAllPending()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if more := a.DequeueAllPending(); len(more) != 0 {
		t.Fatalf("expected queue to be empty after drain, got %d", len(more))
	}
}

func TestConcurrentWritesDoNotRace(t *testing.T) {
	a := store.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a.UpsertRealTime("h1", map[string]string{"k": "v"})
			a.SetWalkInProgress("h1", n%2 == 0)
		}(i)
	}
	wg.Wait()
	if !a.Contains("h1") {
		t.Fatalf("expected h1 to be present after concurrent writes")
	}
}

// Package store implements the Discovery & Enrichment Store Adapter: a
// per-device document store holding walk state, cached interface topology,
// and the pending-re-walk queue. No document-store driver appears anywhere
// in the retrieved example corpus, so this adapter is an in-memory,
// mutex-protected map behind the same Adapter interface a real
// document-store-backed implementation would satisfy.
package store

import (
	"sync"

	"github.com/sc4snmp/snmp-poller/models"
)

// Adapter is the full operation set the orchestrator, the Request Engine,
// and the Enricher depend on.
type Adapter interface {
	Contains(hostID string) bool
	UpsertRealTime(hostID string, partial map[string]string)
	RealTimeData(hostID string) (map[string]string, bool)
	StaticData(hostID string) (map[string]models.StaticRow, bool)
	UpdateStaticExisting(hostID, family string, rule models.ExistingVarBindRule, values []string)
	UpdateStaticAdditional(hostID, family string, dimensions map[string]string)
	DeleteStaticFamilies(hostID string, families map[string]bool)
	Delete(hostID string)
	SetPendingRewalk(hostID string, reason models.RewalkReason)
	ClearRewalk(hostID string)
	EnqueueRewalk(hostID, version, credential string)
	DequeueAllPending() []RewalkEntry
	SetWalkInProgress(hostID string, inProgress bool)
	WalkInProgress(hostID string) bool
	Device(hostID string) (models.DeviceState, bool)
	SetEnricherSignature(hostID, signature string)
}

// RewalkEntry is one drained item from the pending-re-walk queue.
type RewalkEntry struct {
	HostID     string
	Version    string
	Credential string
}

// InMemoryAdapter is the production Adapter implementation.
type InMemoryAdapter struct {
	mu      sync.RWMutex
	devices map[string]models.DeviceState
	rewalk  map[string]RewalkEntry
}

// New constructs an empty InMemoryAdapter.
func New() *InMemoryAdapter {
	return &InMemoryAdapter{
		devices: make(map[string]models.DeviceState),
		rewalk:  make(map[string]RewalkEntry),
	}
}

func (a *InMemoryAdapter) getOrCreate(hostID string) models.DeviceState {
	d, ok := a.devices[hostID]
	if !ok {
		d = models.DeviceState{
			HostID:              hostID,
			PendingRewalkReason: models.RewalkFirstTime,
			StaticData:          make(map[string]models.StaticRow),
			RealTimeData:        make(map[string]string),
		}
	}
	return d
}

func (a *InMemoryAdapter) Contains(hostID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.devices[hostID]
	return ok
}

func (a *InMemoryAdapter) Device(hostID string) (models.DeviceState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[hostID]
	return d.Clone(), ok
}

func (a *InMemoryAdapter) UpsertRealTime(hostID string, partial map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	if d.RealTimeData == nil {
		d.RealTimeData = make(map[string]string, len(partial))
	}
	for k, v := range partial {
		d.RealTimeData[k] = v
	}
	a.devices[hostID] = d
}

func (a *InMemoryAdapter) RealTimeData(hostID string) (map[string]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[hostID]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(d.RealTimeData))
	for k, v := range d.RealTimeData {
		out[k] = v
	}
	return out, true
}

func (a *InMemoryAdapter) StaticData(hostID string) (map[string]models.StaticRow, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[hostID]
	if !ok || d.StaticData == nil {
		return nil, false
	}
	return d.Clone().StaticData, true
}

func (a *InMemoryAdapter) UpdateStaticExisting(hostID, family string, rule models.ExistingVarBindRule, values []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	row := d.StaticData[family]
	if row.Columns == nil {
		row.Columns = make(map[string][]string)
	}
	dup := make([]string, len(values))
	copy(dup, values)
	row.Columns[rule.DimensionName] = dup
	d.StaticData[family] = row
	a.devices[hostID] = d
}

func (a *InMemoryAdapter) UpdateStaticAdditional(hostID, family string, dimensions map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	row := d.StaticData[family]
	if row.Columns == nil {
		row.Columns = make(map[string][]string)
	}
	for name, val := range dimensions {
		row.Columns[name] = []string{val}
	}
	d.StaticData[family] = row
	a.devices[hostID] = d
}

// DeleteStaticFamilies removes the listed families from hostID's static
// data. The IF-MIB family is never removed through this path, matching the
// boundary case called out explicitly for the enricher removal scenario.
func (a *InMemoryAdapter) DeleteStaticFamilies(hostID string, families map[string]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.devices[hostID]
	if !ok {
		return
	}
	d = d.Clone()
	for family := range families {
		if family == "IF-MIB" {
			continue
		}
		delete(d.StaticData, family)
	}
	a.devices[hostID] = d
}

func (a *InMemoryAdapter) Delete(hostID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.devices, hostID)
	delete(a.rewalk, hostID)
}

func (a *InMemoryAdapter) SetPendingRewalk(hostID string, reason models.RewalkReason) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	d.PendingRewalkReason = reason
	a.devices[hostID] = d
}

func (a *InMemoryAdapter) ClearRewalk(hostID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.devices[hostID]
	if ok {
		d = d.Clone()
		d.PendingRewalkReason = models.RewalkNone
		a.devices[hostID] = d
	}
	delete(a.rewalk, hostID)
}

func (a *InMemoryAdapter) EnqueueRewalk(hostID, version, credential string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rewalk[hostID] = RewalkEntry{HostID: hostID, Version: version, Credential: credential}
}

func (a *InMemoryAdapter) DequeueAllPending() []RewalkEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RewalkEntry, 0, len(a.rewalk))
	for _, e := range a.rewalk {
		out = append(out, e)
	}
	a.rewalk = make(map[string]RewalkEntry)
	return out
}

func (a *InMemoryAdapter) SetWalkInProgress(hostID string, inProgress bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	d.WalkInProgress = inProgress
	if !inProgress {
		d.FirstWalkDone = true
	}
	a.devices[hostID] = d
}

func (a *InMemoryAdapter) WalkInProgress(hostID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[hostID]
	return ok && d.WalkInProgress
}

func (a *InMemoryAdapter) SetEnricherSignature(hostID, signature string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.getOrCreate(hostID).Clone()
	d.LastEnricherSignature = signature
	a.devices[hostID] = d
}

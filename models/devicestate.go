package models

import "time"

// RewalkReason classifies why a device has a pending re-walk, mirroring
// the decision table the orchestrator consults when it drains the pending
// re-walk queue.
type RewalkReason string

const (
	RewalkNone             RewalkReason = "none"
	RewalkFirstTime        RewalkReason = "first_time"
	RewalkAfterFail        RewalkReason = "after_fail"
	RewalkUptimeRegressed  RewalkReason = "uptime_regressed"
	RewalkEnricherChanged  RewalkReason = "enricher_changed"
)

// StaticRow is one family's cached, per-index dimension table, produced by
// the last full walk of that family's subtree. Index i of each slice in
// Columns corresponds to the same table row.
type StaticRow struct {
	// Columns maps a dimension name (e.g. "ifDescr") to its per-row values.
	Columns map[string][]string
}

// ValueAt returns the value cached for column at the given row index, and
// whether it was present.
func (s StaticRow) ValueAt(column string, index int) (string, bool) {
	vals, ok := s.Columns[column]
	if !ok || index < 0 || index >= len(vals) {
		return "", false
	}
	return vals[index], true
}

// DeviceState is the per-device document held by the Discovery & Enrichment
// Store Adapter, keyed by "host:port".
type DeviceState struct {
	HostID string

	// LastSysUptime is the most recently observed TimeTicks value for
	// sysUpTimeInstance, used to detect device restarts.
	LastSysUptime    uint32
	HasSysUptime     bool
	WalkInProgress   bool
	FirstWalkDone    bool

	// StaticData holds, per oidFamily, the cached row table produced by the
	// last full walk.
	StaticData map[string]StaticRow

	// RealTimeData holds the last-seen liveness probe values (sysDescr,
	// sysObjectID, sysUpTimeInstance, ...) keyed by symbolic name.
	RealTimeData map[string]string

	PendingRewalkReason   RewalkReason
	LastEnricherSignature string
}

// Clone returns a deep-enough copy for read-modify-write under the store's
// per-document lock.
func (d DeviceState) Clone() DeviceState {
	cp := d
	if d.StaticData != nil {
		cp.StaticData = make(map[string]StaticRow, len(d.StaticData))
		for k, v := range d.StaticData {
			cols := make(map[string][]string, len(v.Columns))
			for ck, cv := range v.Columns {
				dup := make([]string, len(cv))
				copy(dup, cv)
				cols[ck] = dup
			}
			cp.StaticData[k] = StaticRow{Columns: cols}
		}
	}
	if d.RealTimeData != nil {
		cp.RealTimeData = make(map[string]string, len(d.RealTimeData))
		for k, v := range d.RealTimeData {
			cp.RealTimeData[k] = v
		}
	}
	return cp
}

// JobKind distinguishes the three classes of entry the orchestrator keeps
// in its live job table.
type JobKind int

const (
	// JobPeriodic is a regular inventory-driven recurring poll.
	JobPeriodic JobKind = iota
	// JobEnricher is a TTL-driven refresh of a cached static table.
	JobEnricher
	// JobDynamic is a job created by the profile-matching task; it is torn
	// down whenever its device leaves inventory or no longer matches.
	JobDynamic
)

// ScheduledJob is one entry of the orchestrator's live job table, keyed by
// Record.EntryKey() for JobPeriodic/JobDynamic entries, or by a synthetic
// "host#family" key for JobEnricher entries.
type ScheduledJob struct {
	Kind JobKind

	// Record is an immutable snapshot of the inventory row bound to this
	// job. For JobEnricher entries only Host is meaningful.
	Record InventoryRecord

	IntervalSeconds int
	NextRunAt       time.Time

	// Generation increments every time this entry is replaced in place,
	// letting a dispatched-but-stale task detect it was superseded.
	Generation uint64
}

// Due reports whether the job should fire at the given instant.
func (j ScheduledJob) Due(now time.Time) bool {
	return !now.Before(j.NextRunAt)
}

// Rescheduled returns a copy of j advanced to its next occurrence after now,
// with the generation counter incremented.
func (j ScheduledJob) Rescheduled(now time.Time) ScheduledJob {
	next := j
	interval := j.IntervalSeconds
	if interval <= 0 {
		interval = 60
	}
	next.NextRunAt = now.Add(time.Duration(interval) * time.Second)
	next.Generation++
	return next
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/inventory"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/poller"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/store"
	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// defaultDynamicFrequencySeconds is the poll interval a dynamically matched
// profile gets when its config omits "frequency" — the design default
// pinned alongside the teacher's own scalar-default constant.
const defaultDynamicFrequencySeconds = 60

// defaultEnricherTTLSeconds is the refresh interval for an IF-MIB enricher
// job when no existingVarBind rule supplies a TTL.
const defaultEnricherTTLSeconds = 300

// JobSubmitter is the subset of poller.WorkerPool the Orchestrator depends
// on. An interface lets tests inject a mock without importing the pool.
type JobSubmitter interface {
	Submit(poller.PollJob)
	TrySubmit(poller.PollJob) bool
}

// Options configures an Orchestrator.
type Options struct {
	InventoryPath          string
	ServerConfigPath       string
	RefreshIntervalSeconds int
	RealtimeTaskFrequency  time.Duration
	OnetimeTaskFrequency   time.Duration
	MatchingTaskFrequency  time.Duration
}

func (o *Options) defaults() {
	if o.RefreshIntervalSeconds <= 0 {
		o.RefreshIntervalSeconds = 60
	}
	if o.RealtimeTaskFrequency <= 0 {
		o.RealtimeTaskFrequency = 30 * time.Second
	}
	if o.OnetimeTaskFrequency <= 0 {
		o.OnetimeTaskFrequency = time.Minute
	}
	if o.MatchingTaskFrequency <= 0 {
		o.MatchingTaskFrequency = 15 * time.Second
	}
}

// Orchestrator is the central state machine described in the architecture's
// Scheduler/Orchestrator component: it reconciles inventory + server config
// into live ScheduledJob entries on a 1-second heartbeat, and runs the
// real-time liveness, profile-matching, and one-time re-walk tasks as
// independently-ticking background goroutines guarded against overlap.
//
// It replaces the teacher's interval-only Scheduler (a single sorted
// []entry resolved once from a static config tree) with the richer state
// the spec requires, while keeping the teacher's core idiom: a
// time.Ticker-driven loop dispatching into a JobSubmitter via TrySubmit.
type Orchestrator struct {
	opts          Options
	store         store.Adapter
	submitter     JobSubmitter
	directPoller  poller.Poller
	walkCoalescer poller.WalkCoalescer
	logger        *slog.Logger

	mu           sync.Mutex
	jobs         map[string]models.ScheduledJob // entry_key -> periodic/dynamic job
	dynamicKeys  map[string]bool
	enricherJobs map[string]models.ScheduledJob // "host#family" -> TTL refresh job
	unmatched    map[string]models.InventoryRecord
	hostRecords  map[string]models.InventoryRecord // one representative row per host

	profiles    map[string]models.Profile
	communities map[string]config.CommunityConfig
	usernames   map[string]config.UsernameConfig

	enricherCfg      models.EnricherConfig
	enricherFamilies map[string]bool

	forceRefresh    atomic.Bool
	realtimeRunning atomic.Bool
	matchingRunning atomic.Bool
	onetimeRunning  atomic.Bool
}

// New constructs an Orchestrator. directPoller is used for the low-volume,
// synchronous liveness GET every realtime tick; submitter is used for the
// high-volume periodic/dynamic/walk work that benefits from the worker
// pool's fan-out. walkCoalescer enforces "at most one outstanding walk per
// device" (typically the same *poller.ConnectionPool backing submitter); a
// nil walkCoalescer never coalesces, which is fine for tests that don't
// exercise the one-time-walk paths.
func New(opts Options, st store.Adapter, submitter JobSubmitter, directPoller poller.Poller, walkCoalescer poller.WalkCoalescer, logger *slog.Logger) *Orchestrator {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if walkCoalescer == nil {
		walkCoalescer = noopWalkCoalescer{}
	}
	return &Orchestrator{
		opts:             opts,
		store:            st,
		submitter:        submitter,
		directPoller:     directPoller,
		walkCoalescer:    walkCoalescer,
		logger:           logger,
		jobs:             make(map[string]models.ScheduledJob),
		dynamicKeys:      make(map[string]bool),
		enricherJobs:     make(map[string]models.ScheduledJob),
		unmatched:        make(map[string]models.InventoryRecord),
		hostRecords:      make(map[string]models.InventoryRecord),
		profiles:         make(map[string]models.Profile),
		enricherFamilies: make(map[string]bool),
	}
}

// noopWalkCoalescer never coalesces — every TryBeginWalk succeeds. Used when
// the caller (e.g. a unit test exercising unrelated Orchestrator behaviour)
// doesn't wire a real *poller.ConnectionPool.
type noopWalkCoalescer struct{}

func (noopWalkCoalescer) TryBeginWalk(string) bool { return true }
func (noopWalkCoalescer) EndWalk(string)           {}

// ForceRefresh requests that the next tick run reconcile_inventory
// regardless of the refresh countdown.
func (o *Orchestrator) ForceRefresh() {
	o.forceRefresh.Store(true)
}

// JobCount returns the number of live periodic/dynamic jobs (for monitoring
// and tests).
func (o *Orchestrator) JobCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / tick loop
// ─────────────────────────────────────────────────────────────────────────────

// Start runs the main tick loop plus the three background tasks. It blocks
// until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); o.runMainLoop(ctx) }()
	go func() { defer wg.Done(); o.runTicker(ctx, o.opts.RealtimeTaskFrequency, &o.realtimeRunning, o.realtimeTask) }()
	go func() { defer wg.Done(); o.runTicker(ctx, o.opts.MatchingTaskFrequency, &o.matchingRunning, o.matchingTask) }()
	go func() { defer wg.Done(); o.runTicker(ctx, o.opts.OnetimeTaskFrequency, &o.onetimeRunning, o.onetimeTask) }()
	wg.Wait()
}

func (o *Orchestrator) runMainLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	counter := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if counter <= 0 || o.forceRefresh.Swap(false) {
				o.reconcileInventory()
				counter = o.opts.RefreshIntervalSeconds
			}
			o.runPendingJobs(time.Now())
			counter--
		}
	}
}

// runTicker drives one background task on freq, skipping a tick if the
// previous run of the same task is still in flight (CompareAndSwap guard,
// matching the teacher's own "don't pile up overlapping work" idiom).
func (o *Orchestrator) runTicker(ctx context.Context, freq time.Duration, running *atomic.Bool, task func(context.Context)) {
	t := time.NewTicker(freq)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !running.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer running.Store(false)
				task(ctx)
			}()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// reconcile_inventory
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) reconcileInventory() {
	serverCfg, err := o.loadServerConfig()
	if err != nil {
		o.logger.Error("orchestrator: reload server config failed", "error", err.Error())
		return
	}
	records, err := o.loadInventory()
	if err != nil {
		o.logger.Error("orchestrator: reload inventory failed", "error", err.Error())
		return
	}

	newEnricherCfg := serverCfg.ToEnricherConfig()
	newProfiles := serverCfg.ToProfiles()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.profiles = newProfiles
	o.communities = serverCfg.Communities
	o.usernames = serverCfg.Usernames

	seenKeys := make(map[string]bool, len(records))
	seenHosts := make(map[string]bool, len(records))

	for _, rec := range records {
		seenHosts[rec.Host] = true
		if _, known := o.hostRecords[rec.Host]; !known {
			o.hostRecords[rec.Host] = rec
		}

		if rec.IsDynamicProfile() {
			for key, isDynamic := range o.dynamicKeys {
				if isDynamic && jobHost(key) == rec.Host {
					delete(o.jobs, key)
					delete(o.dynamicKeys, key)
				}
			}
			_, alreadyUnmatched := o.unmatched[rec.Host]
			// Use newEnricherCfg, not o.enricherCfg: the latter is still
			// zero-value on this host's first reconcile (it's only
			// assigned at the end of this pass), so reading it here would
			// silently skip the IF-MIB walk even when the config this very
			// pass loaded configures an enricher.
			if !alreadyUnmatched && len(newEnricherCfg.Families) > 0 {
				o.store.EnqueueRewalk(rec.Host, rec.Version, rec.Credential)
			}
			o.unmatched[rec.Host] = rec
			continue
		}

		key := rec.EntryKey()
		seenKeys[key] = true
		delete(o.unmatched, rec.Host)

		freq := rec.FrequencySeconds
		if freq <= 0 {
			if p, ok := o.profiles[rec.Profile]; ok && p.FrequencySeconds > 0 {
				freq = p.FrequencySeconds
			} else {
				freq = defaultDynamicFrequencySeconds
			}
		}

		existing, ok := o.jobs[key]
		switch {
		case !ok:
			o.jobs[key] = models.ScheduledJob{
				Kind: models.JobPeriodic, Record: rec,
				IntervalSeconds: freq, NextRunAt: time.Now(),
			}
		case existing.Record != rec || existing.IntervalSeconds != freq:
			next := existing
			next.Record = rec
			next.IntervalSeconds = freq
			next.Generation++
			candidate := time.Now().Add(time.Duration(freq) * time.Second)
			if candidate.Before(existing.NextRunAt) {
				next.NextRunAt = candidate
			}
			o.jobs[key] = next
		}
	}

	// Step 4: drop jobs/devices no longer present in inventory.
	var toRemove []string
	for key := range o.jobs {
		if !seenKeys[key] {
			toRemove = append(toRemove, key)
		}
	}
	affectedHosts := make(map[string]bool, len(toRemove))
	for _, key := range toRemove {
		affectedHosts[o.jobs[key].Record.Host] = true
		delete(o.jobs, key)
		delete(o.dynamicKeys, key)
	}
	for host := range affectedHosts {
		if o.hostHasAnyJobLocked(host) {
			continue
		}
		o.store.Delete(host)
		for fKey := range o.enricherJobs {
			if jobHost(fKey) == host {
				delete(o.enricherJobs, fKey)
			}
		}
		delete(o.hostRecords, host)
	}
	for host := range o.unmatched {
		if !seenHosts[host] {
			delete(o.unmatched, host)
		}
	}
	for host := range o.hostRecords {
		if !seenHosts[host] {
			delete(o.hostRecords, host)
		}
	}

	// Step 5: enricher config diff.
	ifmibChanged := o.enricherCfg.Families["IF-MIB"].Signature() != newEnricherCfg.Families["IF-MIB"].Signature()
	removed := make(map[string]bool)
	for family := range o.enricherFamilies {
		if family == "IF-MIB" {
			continue
		}
		if _, stillPresent := newEnricherCfg.Families[family]; !stillPresent {
			removed[family] = true
		}
	}
	if len(removed) > 0 {
		for host := range o.hostRecords {
			o.store.DeleteStaticFamilies(host, removed)
		}
	}
	if ifmibChanged {
		for host, rec := range o.hostRecords {
			o.store.EnqueueRewalk(host, rec.Version, rec.Credential)
			o.store.SetPendingRewalk(host, models.RewalkEnricherChanged)
		}
	}

	newFamilies := make(map[string]bool, len(newEnricherCfg.Families))
	for family := range newEnricherCfg.Families {
		newFamilies[family] = true
	}
	o.enricherCfg = newEnricherCfg
	o.enricherFamilies = newFamilies
}

func (o *Orchestrator) hostHasAnyJobLocked(host string) bool {
	for _, job := range o.jobs {
		if job.Record.Host == host {
			return true
		}
	}
	return false
}

func jobHost(entryKey string) string {
	return strings.SplitN(entryKey, "#", 2)[0]
}

func (o *Orchestrator) loadServerConfig() (config.ServerConfig, error) {
	f, err := os.Open(o.opts.ServerConfigPath)
	if err != nil {
		return config.ServerConfig{}, fmt.Errorf("open server config: %w", err)
	}
	defer f.Close()
	return config.LoadServerConfig(f)
}

func (o *Orchestrator) loadInventory() ([]models.InventoryRecord, error) {
	f, err := os.Open(o.opts.InventoryPath)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	rows, err := inventory.Parse(f, o.logger)
	if err != nil {
		return nil, err
	}

	out := make([]models.InventoryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.InventoryRecord{
			Host:             r.Host,
			Version:          r.Version,
			Credential:       r.Community,
			Profile:          r.Profile,
			FrequencySeconds: r.Frequency(),
		})
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Periodic poll dispatch
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) runPendingJobs(now time.Time) {
	o.mu.Lock()
	var due []models.ScheduledJob
	for key, job := range o.jobs {
		if job.Due(now) {
			due = append(due, job)
			o.jobs[key] = job.Rescheduled(now)
		}
	}
	var dueEnricher []models.ScheduledJob
	for key, job := range o.enricherJobs {
		if job.Due(now) {
			dueEnricher = append(dueEnricher, job)
			o.enricherJobs[key] = job.Rescheduled(now)
		}
	}
	profiles, communities, usernames := o.profiles, o.communities, o.usernames
	o.mu.Unlock()

	for _, job := range due {
		profile, ok := profiles[job.Record.Profile]
		if !ok {
			o.logger.Warn("orchestrator: no profile bound to job", "entry_key", job.Record.EntryKey(), "profile", job.Record.Profile)
			continue
		}
		pollJobs, err := ResolvePollJobs(job.Record, profile, communities, usernames, o.logger)
		if err != nil {
			o.logger.Warn("orchestrator: resolve poll jobs failed", "entry_key", job.Record.EntryKey(), "error", err.Error())
			continue
		}
		for _, pj := range pollJobs {
			if !o.submitter.TrySubmit(pj) {
				o.logger.Warn("orchestrator: job queue full, dropping job", "hostname", pj.Hostname, "object", pj.ObjectDef.Key)
			}
		}
	}

	for _, job := range dueEnricher {
		pj, err := resolveIFMIBWalkJob(job.Record, communities, usernames)
		if err != nil {
			continue
		}
		o.submitter.TrySubmit(pj)
	}
}

func resolveIFMIBWalkJob(rec models.InventoryRecord, communities map[string]config.CommunityConfig, usernames map[string]config.UsernameConfig) (poller.PollJob, error) {
	devCfg, err := config.ResolveDeviceConfig(rec, communities, usernames)
	if err != nil {
		return poller.PollJob{}, err
	}
	dev := models.Device{Hostname: rec.Host, IPAddress: devCfg.IP, SNMPVersion: devCfg.Version}

	attrs := make(map[string]models.AttributeDefinition, len(config.IFMIBColumns))
	for _, name := range config.IFMIBColumns {
		oid, _ := config.ResolveWellKnownOID("IF-MIB", name)
		attrs[name] = models.AttributeDefinition{OID: oid, Name: name}
	}
	objDef := models.ObjectDefinition{
		Key:        "IF-MIB::ifEntry",
		MIB:        "IF-MIB",
		Object:     "ifEntry",
		Attributes: attrs,
		Index:      []models.IndexDefinition{{OID: attrs["ifIndex"].OID, Name: "ifIndex"}},
	}

	return poller.PollJob{
		Hostname: rec.EntryKey(), Record: rec, ProfileName: "IF-MIB",
		Device: dev, DeviceConfig: devCfg,
		ObjectDef: objDef,
	}, nil
}

// ScheduleEnricherRefresh registers (or re-registers) the periodic IF-MIB
// refresh job for hostID, using ttlSeconds when positive or the package
// default otherwise.
func (o *Orchestrator) ScheduleEnricherRefresh(rec models.InventoryRecord, ttlSeconds int) {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultEnricherTTLSeconds
	}
	key := rec.Host + "#IF-MIB"
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enricherJobs[key] = models.ScheduledJob{
		Kind: models.JobEnricher, Record: rec,
		IntervalSeconds: ttlSeconds, NextRunAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Real-time liveness task
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) realtimeTask(ctx context.Context) {
	o.mu.Lock()
	hosts := make([]models.InventoryRecord, 0, len(o.hostRecords))
	for _, rec := range o.hostRecords {
		hosts = append(hosts, rec)
	}
	communities, usernames := o.communities, o.usernames
	o.mu.Unlock()

	for _, rec := range hosts {
		select {
		case <-ctx.Done():
			return
		default:
		}
		o.checkLiveness(ctx, rec, communities, usernames)
	}
}

func (o *Orchestrator) checkLiveness(ctx context.Context, rec models.InventoryRecord, communities map[string]config.CommunityConfig, usernames map[string]config.UsernameConfig) {
	job, err := ResolveLivenessJob(rec, communities, usernames)
	if err != nil {
		o.logger.Warn("orchestrator: resolve liveness job failed", "host", rec.Host, "error", err.Error())
		return
	}
	raw, err := o.directPoller.Poll(ctx, job)
	if err != nil && len(raw.Varbinds) == 0 {
		o.logger.Warn("orchestrator: liveness poll failed", "host", rec.Host, "error", err.Error())
		return
	}

	parser, err := decoder.NewVarbindParser(job.ObjectDef)
	if err != nil {
		return
	}
	decoded, _ := parser.Parse(raw.Varbinds)

	values := make(map[string]string, len(decoded))
	for _, dv := range decoded {
		values[dv.AttributeName] = fmt.Sprintf("%v", dv.Value)
	}

	hostID := rec.Host
	hostKnown := o.store.Contains(hostID)
	prevData, _ := o.store.RealTimeData(hostID)
	restarted := deviceRestarted(prevData["sysUpTimeInstance"], values["sysUpTimeInstance"])
	shouldWalk := !hostKnown || restarted

	if len(values) > 0 {
		o.store.UpsertRealTime(hostID, values)
	}

	if !shouldWalk {
		return
	}

	// At most one outstanding walk per device: a walk already in flight
	// absorbs this trigger instead of starting a second one.
	if o.walkCoalescer.TryBeginWalk(hostID) {
		walkJob, err := ResolveOneTimeWalkJob(rec, communities, usernames)
		if err != nil {
			o.walkCoalescer.EndWalk(hostID)
		} else {
			o.store.SetWalkInProgress(hostID, true)
			o.submitter.TrySubmit(walkJob)
		}
	}

	reason := models.RewalkUptimeRegressed
	if !hostKnown {
		reason = models.RewalkFirstTime
	}
	o.store.SetPendingRewalk(hostID, reason)

	if hostKnown {
		// Not the initial startup walk — force an inventory refresh in 2
		// minutes so newly discovered topology takes effect promptly.
		go func() {
			select {
			case <-time.After(2 * time.Minute):
				o.forceRefresh.Store(true)
			case <-ctx.Done():
			}
		}()
	}
}

func deviceRestarted(prev, new string) bool {
	if prev == "" || new == "" {
		return false
	}
	prevVal, err1 := strconv.ParseUint(prev, 10, 64)
	newVal, err2 := strconv.ParseUint(new, 10, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return prevVal > newVal
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile matching task
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) matchingTask(ctx context.Context) {
	o.mu.Lock()
	candidates := make([]models.InventoryRecord, 0, len(o.unmatched))
	for _, rec := range o.unmatched {
		candidates = append(candidates, rec)
	}
	profiles := o.profiles
	o.mu.Unlock()

	for _, rec := range candidates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		data, ok := o.store.RealTimeData(rec.Host)
		if !ok {
			continue
		}
		sysDescr, sysObjectID := data["sysDescr"], data["sysObjectID"]
		if sysDescr == "" && sysObjectID == "" {
			continue
		}

		name, freq, matched := matchProfile(profiles, sysDescr, sysObjectID)
		if !matched {
			continue
		}

		matchedRec := rec
		matchedRec.Profile = name
		key := matchedRec.EntryKey()

		o.mu.Lock()
		o.jobs[key] = models.ScheduledJob{Kind: models.JobDynamic, Record: matchedRec, IntervalSeconds: freq, NextRunAt: time.Now()}
		o.dynamicKeys[key] = true
		delete(o.unmatched, rec.Host)
		o.mu.Unlock()
	}
}

// matchProfile evaluates each profile's patterns, in a deterministic
// (sorted) profile order, against sysDescr and sysObjectID. The first
// pattern that matches wins.
func matchProfile(profiles map[string]models.Profile, sysDescr, sysObjectID string) (name string, freq int, matched bool) {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		p := profiles[n]
		for _, pattern := range p.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			if re.MatchString(sysDescr) || re.MatchString(sysObjectID) {
				f := p.FrequencySeconds
				if f <= 0 {
					f = defaultDynamicFrequencySeconds
				}
				return n, f, true
			}
		}
	}
	return "", 0, false
}

// ─────────────────────────────────────────────────────────────────────────────
// One-time re-walk drain task
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) onetimeTask(ctx context.Context) {
	entries := o.store.DequeueAllPending()
	o.mu.Lock()
	communities, usernames := o.communities, o.usernames
	o.mu.Unlock()

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !o.walkCoalescer.TryBeginWalk(e.HostID) {
			// Coalesce: a walk is already running for this device. Put the
			// entry back on the queue for the next drain instead of
			// starting a second one.
			o.store.EnqueueRewalk(e.HostID, e.Version, e.Credential)
			continue
		}
		rec := models.InventoryRecord{Host: e.HostID, Version: e.Version, Credential: e.Credential}
		job, err := ResolveOneTimeWalkJob(rec, communities, usernames)
		if err != nil {
			o.walkCoalescer.EndWalk(e.HostID)
			o.logger.Warn("orchestrator: resolve one-time walk failed", "host", e.HostID, "error", err.Error())
			continue
		}
		o.store.SetWalkInProgress(e.HostID, true)
		o.submitter.TrySubmit(job)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter — discard log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

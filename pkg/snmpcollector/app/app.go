// Package app wires the SNMP Collector pipeline stages together and manages
// their lifecycle.
//
//	Orchestrator → WorkerPool → [rawCh] → Decoder → [decodedCh] →
//	process (classify raw value, enrich, then enum-label/counter-delta the
//	published presentation) → translator.Client → publisher.Client
//
// The Orchestrator owns its own reconcile_inventory / realtime / matching /
// one-time-walk loops (see the scheduler package); App's job is to build
// every stage once and keep the channels flowing until Stop is called.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/enricher"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/poller"
	producerpkg "github.com/sc4snmp/snmp-poller/pkg/snmpcollector/producer"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/publisher"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/scheduler"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/store"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/translator"
	"github.com/sc4snmp/snmp-poller/producer/metrics"
	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the collector application.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// ConfigPaths locates the inventory CSV, server config YAML, and enum
	// definitions directory. Use config.PathsFromEnv() to populate from
	// environment variables.
	ConfigPaths config.Paths

	// CollectorID identifies this collector instance in published metadata.
	// Typically the hostname or pod name.
	CollectorID string

	// PollerWorkers is the number of concurrent poller goroutines.
	PollerWorkers int

	// BufferSize is the capacity of each inter-stage channel.
	BufferSize int

	// PoolOptions configures the SNMP connection pool.
	PoolOptions poller.PoolOptions

	// EnumEnabled mirrors the -processor.enum.enable flag.
	EnumEnabled bool

	// CounterDeltaEnabled controls counter delta computation for Counter32/64.
	CounterDeltaEnabled bool

	// EventIndex / MetricIndex / MetaIndex name the destination index per
	// record kind, mirroring --event_index / --metric_index / --meta_index.
	EventIndex  string
	MetricIndex string
	MetaIndex   string

	// TranslatorURL is the translation service base URL (-translator.url).
	TranslatorURL     string
	TranslatorTimeout time.Duration

	// EventsGatewayURL / MetricsGatewayURL are the ingest gateway endpoints
	// (-gateway.events.url / -gateway.metrics.url).
	EventsGatewayURL  string
	MetricsGatewayURL string

	// RefreshIntervalSeconds / *TaskFrequency configure the Orchestrator
	// (--refresh_interval, --realtime_task_frequency,
	// --matching_task_frequency, --onetime_task_frequency).
	RefreshIntervalSeconds int
	RealtimeTaskFrequency  time.Duration
	MatchingTaskFrequency  time.Duration
	OnetimeTaskFrequency   time.Duration
}

func (c *Config) withDefaults() {
	if c.CollectorID == "" {
		name, _ := os.Hostname()
		if name == "" {
			name = "snmpcollector"
		}
		c.CollectorID = name
	}
	if c.PollerWorkers <= 0 {
		c.PollerWorkers = 500
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 10_000
	}
	if c.EventIndex == "" {
		c.EventIndex = "netops"
	}
	if c.MetricIndex == "" {
		c.MetricIndex = "em_metrics"
	}
	if c.MetaIndex == "" {
		c.MetaIndex = c.EventIndex
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the full SNMP collector pipeline. Create one with New,
// start it with Start, and stop it with Stop (or cancel the context).
type App struct {
	cfg    Config
	logger *slog.Logger

	store      store.Adapter
	enums      *metrics.EnumRegistry
	counters   *metrics.CounterState
	enricherRG *enricher.Registry

	connPool   *poller.ConnectionPool
	snmpPoller *poller.SNMPPoller
	workerPool *poller.WorkerPool
	orch       *scheduler.Orchestrator
	dec        *decoder.SNMPDecoder
	translator *translator.Client
	publisher  *publisher.Client

	rawCh     chan decoder.RawPollResult
	decodedCh chan decoder.DecodedPollResult

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, constructs all pipeline stages, and launches the
// goroutines that connect them. The caller must eventually call Stop (or
// cancel the passed-in context's parent) to release resources.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("app: loading configuration")

	f, err := os.Open(a.cfg.ConfigPaths.Server)
	if err != nil {
		return fmt.Errorf("app: open server config: %w", err)
	}
	serverCfg, err := config.LoadServerConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("app: load server config: %w", err)
	}

	a.enums = metrics.NewEnumRegistry()
	if a.cfg.EnumEnabled {
		loaded, err := config.Load(a.cfg.ConfigPaths, a.logger)
		if err != nil {
			return fmt.Errorf("app: load enums: %w", err)
		}
		a.enums = loaded.Enums
	}
	if a.cfg.CounterDeltaEnabled {
		a.counters = metrics.NewCounterState()
	}

	a.store = store.New()
	a.enricherRG = enricher.NewRegistry(serverCfg.ToEnricherConfig())

	a.rawCh = make(chan decoder.RawPollResult, a.cfg.BufferSize)
	a.decodedCh = make(chan decoder.DecodedPollResult, a.cfg.BufferSize)

	a.dec = decoder.NewSNMPDecoder(a.logger)
	a.translator = translator.New(translator.Config{
		BaseURL:        a.cfg.TranslatorURL,
		AttemptTimeout: a.cfg.TranslatorTimeout,
	}, a.logger)
	a.publisher = publisher.New(publisher.Config{
		EventsURL:  a.cfg.EventsGatewayURL,
		MetricsURL: a.cfg.MetricsGatewayURL,
	}, a.logger)

	a.connPool = poller.NewConnectionPool(a.cfg.PoolOptions, a.logger)
	a.snmpPoller = poller.NewSNMPPoller(a.connPool, a.logger)
	a.workerPool = poller.NewWorkerPool(a.cfg.PollerWorkers, a.snmpPoller, a.rawCh, a.logger)

	a.orch = scheduler.New(scheduler.Options{
		InventoryPath:          a.cfg.ConfigPaths.Inventory,
		ServerConfigPath:       a.cfg.ConfigPaths.Server,
		RefreshIntervalSeconds: a.cfg.RefreshIntervalSeconds,
		RealtimeTaskFrequency:  a.cfg.RealtimeTaskFrequency,
		MatchingTaskFrequency:  a.cfg.MatchingTaskFrequency,
		OnetimeTaskFrequency:   a.cfg.OnetimeTaskFrequency,
	}, a.store, a.workerPool, a.snmpPoller, a.connPool, a.logger)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.startPublishStage(pipeCtx)
	a.startDecodeStage(pipeCtx)

	a.workerPool.Start(pipeCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.orch.Start(pipeCtx)
	}()

	a.logger.Info("app: pipeline running",
		"poller_workers", a.cfg.PollerWorkers,
		"buffer_size", a.cfg.BufferSize,
	)
	return nil
}

// Stop performs a graceful shutdown: cancel the pipeline context, wait for
// the orchestrator to exit, drain the worker pool, then close rawCh to
// cascade closes through decode → publish, and finally release the
// connection pool.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
	}
	if a.rawCh != nil {
		close(a.rawCh)
	}
	a.wg.Wait()

	if a.connPool != nil {
		a.connPool.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	a.logger.Info("app: shutdown complete")
}

// ForceRefresh requests an immediate reconcile_inventory pass.
func (a *App) ForceRefresh() {
	if a.orch != nil {
		a.orch.ForceRefresh()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline stage goroutines
// ─────────────────────────────────────────────────────────────────────────────

// startDecodeStage reads RawPollResult from rawCh, decodes each into a
// DecodedPollResult, and sends it to decodedCh. Closes decodedCh on shutdown.
func (a *App) startDecodeStage(_ context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.decodedCh)

		for raw := range a.rawCh {
			decoded, err := a.dec.Decode(raw)
			if err != nil {
				a.logger.Warn("app: decode error",
					"device", raw.Device.Hostname,
					"object", raw.ObjectDef.Key,
					"error", err.Error(),
				)
			}
			// A failed poll attempt carries no varbinds but must still reach
			// the publish stage so it can emit an sc4snmp:error event and
			// update the device's pending-rewalk state.
			if decoded.Outcome == decoder.OutcomeOK && len(decoded.Varbinds) == 0 {
				continue
			}
			a.decodedCh <- decoded
		}
	}()
}

// startPublishStage reads DecodedPollResult from decodedCh and, for every
// varbind, classifies + translates the raw value, joins enrichment
// dimensions from the static store, and publishes the resulting event or
// metric — applying counter-delta normalisation to a classified metric's
// value and enum-label resolution to a classified event's text, neither of
// which can change which stream a reading is published to.
func (a *App) startPublishStage(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		for decoded := range a.decodedCh {
			a.processResult(ctx, decoded)
		}
	}()
}

func (a *App) processResult(ctx context.Context, decoded decoder.DecodedPollResult) {
	hostID := decoded.Device.Hostname
	isWalk := strings.HasPrefix(decoded.ObjectDefKey, "fullWalk::")
	isIFMIBRefresh := decoded.ObjectDefKey == "IF-MIB::ifEntry"

	if decoded.Outcome == decoder.OutcomeError {
		a.publishPollError(decoded, hostID, isWalk)
		return
	}

	if isIFMIBRefresh {
		a.updateIFMIBStaticData(hostID, decoded.Varbinds)
	}

	family := objectFamily(decoded.ObjectDefKey)
	strategy := a.enricherRG.StrategyFor(family)
	staticData, _ := a.store.StaticData(hostID)
	row := staticData[family]

	for _, dv := range decoded.Varbinds {
		// Classification always runs against the raw SNMP value: is_metric
		// is decided purely by whether it float-parses. Enum resolution and
		// counter-delta normalization are presentation transforms applied
		// after classification and must never feed back into it — an
		// ifOperStatus=1 reading stays a metric even with enum resolution
		// on, and a Counter64 reading classifies on its raw wire value
		// before any delta is computed.
		binding := producerpkg.BuildRawBinding(dv)
		binding.Plain = fmt.Sprintf("%v", dv.Value)
		if dv.SNMPType == "OctetString" {
			binding.Pretty = binding.Plain
		}

		translated := a.translator.Translate(ctx, binding)

		if translated.IsMetric {
			metricValue := translated.MetricValue
			if a.counters != nil && metrics.IsCounterSyntax(dv.SNMPType) {
				if u, ok := dv.Value.(uint64); ok {
					key := metrics.CounterKey{Device: hostID, Attribute: dv.AttributeName, Instance: dv.Instance}
					delta := a.counters.Delta(key, u, decoded.CollectedAt, metrics.WrapForSyntax(dv.SNMPType))
					if delta.Valid {
						metricValue = strconv.FormatUint(delta.Delta, 10)
					}
				}
			}

			parsedIndex, _ := strconv.Atoi(lastIndexComponent(dv.Instance))
			dims := map[string]string{}
			if strategy != nil {
				for _, d := range strategy.Enrich(translated.MetricName, parsedIndex, row) {
					dims[d.Name] = d.Value
				}
			}
			metric := publisher.BuildMetric(publisher.BuildMetricOptions{
				Host:             hostID,
				Index:            a.cfg.MetricIndex,
				FrequencySeconds: decoded.FrequencySeconds,
				EnricherFamilies: a.enricherRG.Families(),
				Dimensions:       dims,
			}, translated.MetricName, metricValue, decoded.CollectedAt)
			a.publisher.PublishMetric(metric)
			continue
		}

		text := translated.Text
		if a.cfg.EnumEnabled && a.enums != nil {
			if label, ok := a.enums.Resolve(dv.OID, dv.Value).(string); ok && label != binding.Plain {
				text = fmt.Sprintf("%s = %s", dv.OID, label)
			}
		}

		index := a.cfg.MetaIndex
		if isWalk {
			index = a.cfg.EventIndex
		}
		event := publisher.BuildEvent(publisher.BuildEventOptions{
			Host:          hostID,
			Index:         index,
			IsOneTimeWalk: isWalk,
		}, text, decoded.CollectedAt)
		a.publisher.PublishEvent(event)
	}

	if isWalk {
		a.store.SetWalkInProgress(hostID, false)
		a.connPool.EndWalk(hostID)
	}
}

// publishPollError shapes and publishes the sc4snmp:error event for a failed
// poll attempt (category 2, §7): a walk failure also clears the device's
// in-flight walk flag and marks it for retry via the pending-rewalk queue.
func (a *App) publishPollError(decoded decoder.DecodedPollResult, hostID string, isWalk bool) {
	body := fmt.Sprintf("error polling %s: %s: %s", decoded.ObjectDefKey, decoded.ErrKind, decoded.ErrDetail)

	index := a.cfg.MetaIndex
	if isWalk {
		index = a.cfg.EventIndex
	}
	event := publisher.BuildEvent(publisher.BuildEventOptions{
		Host: hostID, Index: index, IsOneTimeWalk: isWalk,
	}, body, decoded.CollectedAt)
	a.publisher.PublishEvent(event)

	if isWalk {
		a.store.SetPendingRewalk(hostID, models.RewalkAfterFail)
		a.store.SetWalkInProgress(hostID, false)
		a.connPool.EndWalk(hostID)
	}
}

// updateIFMIBStaticData groups one IF-MIB refresh walk's decoded varbinds by
// attribute name and row instance, and caches the resulting per-column
// arrays so the enricher's array-join strategy can serve later metrics.
func (a *App) updateIFMIBStaticData(hostID string, varbinds []decoder.DecodedVarbind) {
	rows := make(map[string]map[int]string) // attribute -> rowIndex -> value
	maxIndex := -1
	for _, dv := range varbinds {
		idx, err := strconv.Atoi(lastIndexComponent(dv.Instance))
		if err != nil {
			continue
		}
		if idx > maxIndex {
			maxIndex = idx
		}
		col, ok := rows[dv.AttributeName]
		if !ok {
			col = make(map[int]string)
			rows[dv.AttributeName] = col
		}
		col[idx] = fmt.Sprintf("%v", dv.Value)
	}
	if maxIndex < 0 {
		return
	}

	for attr, col := range rows {
		values := make([]string, maxIndex+1)
		for i, v := range col {
			values[i] = v
		}
		a.store.UpdateStaticExisting(hostID, enricher.IFMIBFamily,
			models.ExistingVarBindRule{SymbolicName: attr, DimensionName: attr}, values)
	}
}

// objectFamily extracts the MIB family from an ObjectDefinition key of the
// form "MIB::object".
func objectFamily(objectDefKey string) string {
	i := strings.Index(objectDefKey, "::")
	if i < 0 {
		return objectDefKey
	}
	return objectDefKey[:i]
}

// lastIndexComponent returns the final dotted component of a table
// instance string, e.g. "5" from "10.0.0.1.5" — the row index gosnmp
// table walks append after any compound index prefix.
func lastIndexComponent(instance string) string {
	i := strings.LastIndex(instance, ".")
	if i < 0 {
		return instance
	}
	return instance[i+1:]
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

var _ io.Writer = noopWriter{}

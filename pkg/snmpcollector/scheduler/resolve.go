// Package scheduler implements the Orchestrator: the central state machine
// that reconciles inventory and server config into live ScheduledJob
// entries, drives the real-time liveness / profile-matching / one-time
// re-walk background tasks, and dispatches SNMP poll work to the poller's
// WorkerPool.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/poller"
	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// ResolvePollJobs expands one InventoryRecord + its bound Profile into one
// PollJob per VarBindSelector the profile declares.
func ResolvePollJobs(rec models.InventoryRecord, profile models.Profile, communities map[string]config.CommunityConfig, usernames map[string]config.UsernameConfig, logger *slog.Logger) ([]poller.PollJob, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	devCfg, err := config.ResolveDeviceConfig(rec, communities, usernames)
	if err != nil {
		return nil, fmt.Errorf("scheduler: resolve device config for %q: %w", rec.EntryKey(), err)
	}

	dev := models.Device{
		Hostname:    rec.Host,
		IPAddress:   devCfg.IP,
		SNMPVersion: devCfg.Version,
	}

	jobs := make([]poller.PollJob, 0, len(profile.VarBinds))
	for _, sel := range profile.VarBinds {
		jobs = append(jobs, poller.PollJob{
			Hostname:     rec.EntryKey(),
			Record:       rec,
			ProfileName:  profile.Name,
			Device:       dev,
			DeviceConfig: devCfg,
			ObjectDef:    decoder.ObjectDefinitionForSelector(profile.Name, sel),
		})
	}
	return jobs, nil
}

// ResolveOneTimeWalkJob builds the single full-subtree walk job used by the
// real-time liveness task and the one-time re-walk drain: a BULK (or WALK,
// for v1) of the root OID "1.3.6.1", tagged so the publisher can mark the
// resulting records sc4snmp:walk.
func ResolveOneTimeWalkJob(rec models.InventoryRecord, communities map[string]config.CommunityConfig, usernames map[string]config.UsernameConfig) (poller.PollJob, error) {
	devCfg, err := config.ResolveDeviceConfig(rec, communities, usernames)
	if err != nil {
		return poller.PollJob{}, fmt.Errorf("scheduler: resolve device config for %q: %w", rec.EntryKey(), err)
	}
	dev := models.Device{
		Hostname:    rec.Host,
		IPAddress:   devCfg.IP,
		SNMPVersion: devCfg.Version,
	}
	sel := models.VarBindSelector{Kind: models.SelectorBulk, OID: "1.3.6.1", Name: "fullWalk"}
	return poller.PollJob{
		Hostname:     rec.EntryKey(),
		Record:       rec,
		ProfileName:  rec.Profile,
		Device:       dev,
		DeviceConfig: devCfg,
		ObjectDef:    decoder.ObjectDefinitionForSelector("fullWalk", sel),
	}, nil
}

// ResolveLivenessJob builds the scalar GET job the real-time liveness task
// issues every tick against every inventory device: sysUpTimeInstance (for
// restart detection) plus sysDescr / sysObjectID, opportunistically
// piggy-backed onto the same request so the profile-matching task has
// something to match against without a dedicated discovery round trip.
func ResolveLivenessJob(rec models.InventoryRecord, communities map[string]config.CommunityConfig, usernames map[string]config.UsernameConfig) (poller.PollJob, error) {
	devCfg, err := config.ResolveDeviceConfig(rec, communities, usernames)
	if err != nil {
		return poller.PollJob{}, fmt.Errorf("scheduler: resolve device config for %q: %w", rec.EntryKey(), err)
	}
	dev := models.Device{
		Hostname:    rec.Host,
		IPAddress:   devCfg.IP,
		SNMPVersion: devCfg.Version,
	}
	objDef := models.ObjectDefinition{
		Key: "liveness",
		Attributes: map[string]models.AttributeDefinition{
			"sysUpTimeInstance": {OID: config.SysUpTimeInstanceOID, Name: "sysUpTimeInstance"},
			"sysDescr":          {OID: config.SysDescrOID, Name: "sysDescr"},
			"sysObjectID":       {OID: config.SysObjectIDOID, Name: "sysObjectID"},
		},
	}
	return poller.PollJob{
		Hostname:     rec.EntryKey(),
		Record:       rec,
		ProfileName:  rec.Profile,
		Device:       dev,
		DeviceConfig: devCfg,
		ObjectDef:    objDef,
	}, nil
}

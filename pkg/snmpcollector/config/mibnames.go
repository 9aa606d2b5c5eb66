package config

// wellKnownOIDs resolves a handful of standard MIB object names to their
// numeric OID. A full MIB compiler is out of scope here (symbolic
// translation for anything beyond these well-known objects is the
// translation service's job, reached over MIBS_SERVER_URL /
// MIBS_FILES_URL); this table exists only so the small set of objects the
// orchestrator itself depends on by name (sysDescr, sysObjectID,
// sysUpTimeInstance, and the IF-MIB table) can be resolved without a round
// trip, matching the constants the original implementation hard-codes in
// its OidConstant table.
var wellKnownOIDs = map[string]string{
	"SNMPv2-MIB::sysDescr":     "1.3.6.1.2.1.1.1",
	"SNMPv2-MIB::sysObjectID":  "1.3.6.1.2.1.1.2",
	"SNMPv2-MIB::sysUpTime":    "1.3.6.1.2.1.1.3",
	"IF-MIB::ifNumber":         "1.3.6.1.2.1.2.1",
	"IF-MIB::ifIndex":          "1.3.6.1.2.1.2.2.1.1",
	"IF-MIB::ifDescr":          "1.3.6.1.2.1.2.2.1.2",
	"IF-MIB::ifType":           "1.3.6.1.2.1.2.2.1.3",
	"IF-MIB::ifSpeed":          "1.3.6.1.2.1.2.2.1.5",
	"IF-MIB::ifAdminStatus":    "1.3.6.1.2.1.2.2.1.7",
	"IF-MIB::ifOperStatus":     "1.3.6.1.2.1.2.2.1.8",
	"IF-MIB::ifInOctets":       "1.3.6.1.2.1.2.2.1.10",
	"IF-MIB::ifOutOctets":      "1.3.6.1.2.1.2.2.1.16",
}

// SysUpTimeInstanceOID is the scalar sysUpTimeInstance.0 OID used by the
// real-time liveness task to detect device restarts.
const SysUpTimeInstanceOID = "1.3.6.1.2.1.1.3.0"

// SysDescrOID / SysObjectIDOID feed the discovery side channel and the
// profile-matching task.
const (
	SysDescrOID    = "1.3.6.1.2.1.1.1.0"
	SysObjectIDOID = "1.3.6.1.2.1.1.2.0"
)

// ResolveWellKnownOID looks up "MIB::name" in the built-in table.
func ResolveWellKnownOID(mib, name string) (string, bool) {
	oid, ok := wellKnownOIDs[mib+"::"+name]
	return oid, ok
}

// IFMIBColumns is the fixed set of ifEntry columns the IF-MIB enricher
// refresh walk requests, in the order the built-in array-join strategy
// expects them keyed by name.
var IFMIBColumns = []string{
	"ifIndex", "ifDescr", "ifType", "ifSpeed",
	"ifAdminStatus", "ifOperStatus", "ifInOctets", "ifOutOctets",
}

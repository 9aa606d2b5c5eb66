package enricher

import "github.com/sc4snmp/snmp-poller/models"

// IFMIBFamily is the OID family name that can never be removed from a
// device's cached static data, and that is always enriched even when the
// server config's enricher section omits explicit existingVarBinds for it
// (grounded on the source's InterfaceMib, which hard-codes the
// ifIndex/ifDescr join independent of per-deployment configuration).
const IFMIBFamily = "IF-MIB"

// defaultIFMIBRules is appended after any configured IF-MIB rules (each
// default only when no configured rule already uses its dimension name) so
// the standard ifIndex -> ifDescr join is always available.
var defaultIFMIBRules = []models.ExistingVarBindRule{
	{SymbolicName: "ifIndex", DimensionName: "ifIndex"},
	{SymbolicName: "ifDescr", DimensionName: "ifDescr"},
}

func mergeIFMIBDefaults(rules models.FamilyRules) models.FamilyRules {
	seen := make(map[string]bool, len(rules.ExistingVarBinds))
	for _, r := range rules.ExistingVarBinds {
		seen[r.DimensionName] = true
	}
	merged := rules
	for _, d := range defaultIFMIBRules {
		if !seen[d.DimensionName] {
			merged.ExistingVarBinds = append(merged.ExistingVarBinds, d)
		}
	}
	return merged
}

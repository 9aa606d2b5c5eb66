package models

// EnricherConfig is the parsed form of the server config's "enricher" /
// "oidFamily" section: a set of per-family rules describing how to derive
// extra dimension fields for a published record.
type EnricherConfig struct {
	// Families maps an OID family name (e.g. "IF-MIB") to its rule set.
	Families map[string]FamilyRules
}

// FamilyRules holds the two enrichment mechanisms available for one family.
type FamilyRules struct {
	// ExistingVarBinds joins a binding's table-row index against a
	// previously cached array of values, emitting one dimension per entry.
	ExistingVarBinds []ExistingVarBindRule

	// AdditionalVarBinds are named-capture regular expressions evaluated
	// against the metric name; every captured group becomes a dimension.
	AdditionalVarBinds []string
}

// ExistingVarBindRule names a symbolic varbind whose previously-walked
// values should be joined in by row index, and the dimension name the
// joined value is published under.
type ExistingVarBindRule struct {
	SymbolicName  string
	DimensionName string
	// TTLSeconds bounds how long the cached table may be reused before a
	// refresh walk is scheduled. Zero means "no TTL, refresh only on
	// explicit reconciliation".
	TTLSeconds int
}

// Signature returns a stable string used to detect whether the enricher
// configuration for a family changed between two reconciliation passes.
func (f FamilyRules) Signature() string {
	sig := ""
	for _, r := range f.ExistingVarBinds {
		sig += "e:" + r.SymbolicName + ">" + r.DimensionName + ";"
	}
	for _, p := range f.AdditionalVarBinds {
		sig += "a:" + p + ";"
	}
	return sig
}

package models

// VarBindSelector is one entry of a Profile's VarBinds list. It is parsed
// from one of four wire shapes (see ParseVarBindSelector):
//
//	["MIB", "name", "index"]  -> Kind = SelectorGet,  OID resolved externally
//	["MIB", "name"]           -> Kind = SelectorBulk, OID resolved externally
//	"1.2.3.4.5"                -> Kind = SelectorGet
//	"1.2.3.4.*"                -> Kind = SelectorBulk
type VarBindSelector struct {
	Kind SelectorKind
	MIB  string
	Name string
	// Index is only meaningful for the [MIB, name, index] tuple form.
	Index string
	// OID is set directly when the selector is a literal OID string.
	OID string
}

// FullOID returns the concrete OID to request: the base OID with the
// tuple's Index suffix appended when present ([MIB,name,index] form),
// otherwise the base OID unchanged.
func (s VarBindSelector) FullOID() string {
	if s.Index == "" {
		return s.OID
	}
	return s.OID + "." + s.Index
}

// SelectorKind distinguishes a single-point fetch from a subtree fetch.
type SelectorKind int

const (
	SelectorGet SelectorKind = iota
	SelectorBulk
)

// Profile is a named polling recipe, merged from the translation service's
// profile document and the server config's "profiles" section (the latter
// wins on a name clash).
type Profile struct {
	Name string

	// FrequencySeconds is the poll interval for devices bound to this
	// profile by dynamic matching. Zero means "use the orchestrator default".
	FrequencySeconds int

	// Patterns are regular expressions matched, in order, against a
	// device's sysDescr / sysObjectID strings during dynamic profile
	// matching. The first pattern that matches wins.
	Patterns []string

	// VarBinds describes what to poll for devices bound to this profile.
	VarBinds []VarBindSelector
}

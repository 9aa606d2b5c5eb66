package config

import (
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/sc4snmp/snmp-poller/models"
)

// ServerConfig is the parsed server configuration document: store location,
// profiles, credential tables, enrichment rules, and additional metric
// fields. Decoded leniently (unknown keys ignored), matching the teacher's
// yaml-decode idiom (dec.KnownFields(false)).
type ServerConfig struct {
	Mongo                  MongoConfig                `yaml:"mongo"`
	Profiles               map[string]RawProfile      `yaml:"profiles"`
	Communities            map[string]CommunityConfig `yaml:"communities"`
	Usernames              map[string]UsernameConfig  `yaml:"usernames"`
	Enricher               EnricherSection            `yaml:"enricher"`
	AdditionalMetricField  []string                   `yaml:"additionalMetricField"`
}

// MongoConfig names the store's logical location (kept for naming
// continuity with the document-store contract even though this
// implementation's store is in-memory — see DESIGN.md).
type MongoConfig struct {
	Database          string `yaml:"database"`
	WalkedCollection  string `yaml:"walked_collection"`
	UnwalkedCollection string `yaml:"unwalked_collection"`
}

// RawProfile is a profile entry exactly as it appears in YAML, before
// VarBinds selectors are parsed into models.VarBindSelector.
type RawProfile struct {
	Frequency int      `yaml:"frequency"`
	Patterns  []string `yaml:"patterns"`
	VarBinds  []any    `yaml:"varBinds"`
}

// CommunityConfig is one entry of the "communities" table.
type CommunityConfig struct {
	CommunityIndex string `yaml:"communityIndex"`
	ContextEngineID string `yaml:"contextEngineId"`
	ContextName    string `yaml:"contextName"`
	Tag            string `yaml:"tag"`
	SecurityName   string `yaml:"securityName"`
}

// UsernameConfig is one entry of the "usernames" table (SNMPv3 credentials).
type UsernameConfig struct {
	AuthKey         string `yaml:"authKey"`
	PrivKey         string `yaml:"privKey"`
	AuthProtocol    string `yaml:"authProtocol"`
	PrivProtocol    string `yaml:"privProtocol"`
	SecurityEngineID string `yaml:"securityEngineId"`
	SecurityName    string `yaml:"securityName"`
	ContextEngineID string `yaml:"contextEngineId"`
	ContextName     string `yaml:"contextName"`
	AuthKeyType     string `yaml:"authKeyType"`
	PrivKeyType     string `yaml:"privKeyType"`
}

// EnricherSection is the top-level "enricher" key: currently only the
// "oidFamily" sub-key is recognised.
type EnricherSection struct {
	OIDFamily map[string]RawFamilyRules `yaml:"oidFamily"`
}

// RawFamilyRules mirrors models.FamilyRules before YAML decoding into the
// richer ExistingVarBindRule shape.
type RawFamilyRules struct {
	ExistingVarBinds   []RawExistingVarBind `yaml:"existingVarBinds"`
	AdditionalVarBinds []string             `yaml:"additionalVarBinds"`
}

// RawExistingVarBind is one entry of a family's existingVarBinds list.
type RawExistingVarBind struct {
	SymbolicName  string `yaml:"symbolicName"`
	DimensionName string `yaml:"dimensionName"`
	TTLSeconds    int    `yaml:"ttlSeconds"`
}

// LoadServerConfig decodes a server config document from r.
func LoadServerConfig(r io.Reader) (ServerConfig, error) {
	var cfg ServerConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(false)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("config: decode server config: %w", err)
	}
	return cfg, nil
}

// ToEnricherConfig converts the decoded Enricher section into the runtime
// models.EnricherConfig the enricher.Registry is built from.
func (c ServerConfig) ToEnricherConfig() models.EnricherConfig {
	out := models.EnricherConfig{Families: make(map[string]models.FamilyRules, len(c.Enricher.OIDFamily))}
	for family, raw := range c.Enricher.OIDFamily {
		rules := models.FamilyRules{AdditionalVarBinds: raw.AdditionalVarBinds}
		for _, e := range raw.ExistingVarBinds {
			rules.ExistingVarBinds = append(rules.ExistingVarBinds, models.ExistingVarBindRule{
				SymbolicName:  e.SymbolicName,
				DimensionName: e.DimensionName,
				TTLSeconds:    e.TTLSeconds,
			})
		}
		out.Families[family] = rules
	}
	return out
}

// ToProfiles converts the decoded Profiles table into runtime models.Profile
// values, parsing each varBinds entry via ParseVarBindSelector.
func (c ServerConfig) ToProfiles() map[string]models.Profile {
	out := make(map[string]models.Profile, len(c.Profiles))
	for name, raw := range c.Profiles {
		p := models.Profile{
			Name:             name,
			FrequencySeconds: raw.Frequency,
			Patterns:         raw.Patterns,
		}
		for _, vb := range raw.VarBinds {
			sel, err := ParseVarBindSelector(vb)
			if err != nil {
				continue
			}
			p.VarBinds = append(p.VarBinds, sel)
		}
		out[name] = p
	}
	return out
}

// MergeProfiles merges translator-supplied profiles with server-config
// profiles; the server config wins on a name clash, matching
// manager.profile_matching.get_profiles.
func MergeProfiles(translatorProfiles, serverProfiles map[string]models.Profile) map[string]models.Profile {
	out := make(map[string]models.Profile, len(translatorProfiles)+len(serverProfiles))
	for name, p := range translatorProfiles {
		out[name] = p
	}
	for name, p := range serverProfiles {
		out[name] = p
	}
	return out
}

var oidWildcardPattern = regexp.MustCompile(`^\d+(\.\d+)*\.\*$`)
var oidLiteralVB = regexp.MustCompile(`^\d+(\.\d+)*$`)

// ParseVarBindSelector parses one of the four wire shapes a varBinds entry
// may take: a two- or three-element []any tuple ([MIB, name] / [MIB, name,
// index]), or a string OID (scalar, or ending in ".*" for a subtree).
func ParseVarBindSelector(raw any) (models.VarBindSelector, error) {
	switch v := raw.(type) {
	case string:
		if oidWildcardPattern.MatchString(v) {
			return models.VarBindSelector{Kind: models.SelectorBulk, OID: v[:len(v)-2]}, nil
		}
		if oidLiteralVB.MatchString(v) {
			return models.VarBindSelector{Kind: models.SelectorGet, OID: v}, nil
		}
		return models.VarBindSelector{}, fmt.Errorf("config: unrecognised varBind string %q", v)
	case []any:
		switch len(v) {
		case 2:
			mib, _ := v[0].(string)
			name, _ := v[1].(string)
			oid, _ := ResolveWellKnownOID(mib, name)
			return models.VarBindSelector{Kind: models.SelectorBulk, MIB: mib, Name: name, OID: oid}, nil
		case 3:
			mib, _ := v[0].(string)
			name, _ := v[1].(string)
			index, _ := v[2].(string)
			oid, _ := ResolveWellKnownOID(mib, name)
			return models.VarBindSelector{Kind: models.SelectorGet, MIB: mib, Name: name, Index: index, OID: oid}, nil
		default:
			return models.VarBindSelector{}, fmt.Errorf("config: varBind tuple must have 2 or 3 elements, got %d", len(v))
		}
	default:
		return models.VarBindSelector{}, fmt.Errorf("config: unsupported varBind shape %T", raw)
	}
}

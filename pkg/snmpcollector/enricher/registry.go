// Package enricher implements the Enricher: given a translated binding and
// a device's cached static topology, it derives extra dimension fields to
// merge into the published record.
//
// Per the "Enricher polymorphism" design note, dispatch is a registry keyed
// by OID family rather than string-prefix matching scattered through the
// pipeline. Every family configured under the server config's
// enricher.oidFamily section becomes a generic, data-driven Strategy; the
// IF-MIB family additionally gets the built-in array-join fast path.
package enricher

import (
	"regexp"

	"github.com/sc4snmp/snmp-poller/models"
)

// Dimension is one enrichment field to merge into a published record.
type Dimension struct {
	Name  string
	Value string
}

// Strategy is the capability set every family implements.
type Strategy interface {
	ShouldEnrich(metricName string) bool
	Enrich(metricName string, parsedIndex int, row models.StaticRow) []Dimension
}

// Registry dispatches a metric name to the Strategy registered for its OID
// family. It is rebuilt whenever the server config's enricher section
// changes.
type Registry struct {
	families map[string]Strategy
}

// NewRegistry builds a Registry from the parsed EnricherConfig. Every family
// gets a generic, data-driven strategy. The IF-MIB family is always
// registered, whether or not it is configured, with the built-in
// ifIndex/ifDescr rules added to any configured ones.
func NewRegistry(cfg models.EnricherConfig) *Registry {
	r := &Registry{families: make(map[string]Strategy, len(cfg.Families)+1)}
	for family, rules := range cfg.Families {
		if family == IFMIBFamily {
			rules = mergeIFMIBDefaults(rules)
		}
		r.families[family] = newGenericStrategy(family, rules)
	}
	if _, ok := r.families[IFMIBFamily]; !ok {
		r.families[IFMIBFamily] = newGenericStrategy(IFMIBFamily, mergeIFMIBDefaults(models.FamilyRules{}))
	}
	return r
}

// StrategyFor returns the registered strategy for family, or nil.
func (r *Registry) StrategyFor(family string) Strategy {
	return r.families[family]
}

// Families returns the set of family names currently registered.
func (r *Registry) Families() map[string]bool {
	out := make(map[string]bool, len(r.families))
	for f := range r.families {
		out[f] = true
	}
	return out
}

// compileAll compiles a list of regex patterns, skipping any that fail to
// compile (an invalid pattern in config must never crash the pipeline).
func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

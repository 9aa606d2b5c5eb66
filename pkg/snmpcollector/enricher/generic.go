package enricher

import (
	"regexp"
	"strings"

	"github.com/sc4snmp/snmp-poller/models"
)

// genericStrategy is a data-driven Strategy built directly from one
// family's FamilyRules: it applies the existing-varbind join, then the
// additional-varbind regex captures, in that order.
type genericStrategy struct {
	family             string
	existingVarBinds   []models.ExistingVarBindRule
	additionalPatterns []*regexp.Regexp
}

func newGenericStrategy(family string, rules models.FamilyRules) *genericStrategy {
	return &genericStrategy{
		family:             family,
		existingVarBinds:   rules.ExistingVarBinds,
		additionalPatterns: compileAll(rules.AdditionalVarBinds),
	}
}

// ShouldEnrich reports whether metricName belongs to this strategy's family,
// recognised by the "sc4snmp.<family>." prefix convention used throughout
// the published metric namespace.
func (g *genericStrategy) ShouldEnrich(metricName string) bool {
	return strings.HasPrefix(metricName, "sc4snmp."+g.family+".")
}

func (g *genericStrategy) Enrich(metricName string, parsedIndex int, row models.StaticRow) []Dimension {
	var dims []Dimension

	for _, rule := range g.existingVarBinds {
		if val, ok := row.ValueAt(rule.DimensionName, parsedIndex); ok {
			dims = append(dims, Dimension{Name: rule.DimensionName, Value: val})
		}
	}

	for _, re := range g.additionalPatterns {
		match := re.FindStringSubmatch(metricName)
		if match == nil {
			continue
		}
		for i, name := range re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			dims = append(dims, Dimension{Name: name, Value: match[i]})
		}
	}

	return dims
}

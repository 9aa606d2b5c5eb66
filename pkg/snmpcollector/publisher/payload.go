// Package publisher shapes translated records into the exact event/metric
// wire payloads the ingest gateway expects, and POSTs them to the events and
// metrics endpoints.
package publisher

import (
	"strconv"
	"strings"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
)

// BuildEventOptions carries the context needed to shape one published event.
type BuildEventOptions struct {
	Host        string
	Index       string
	IsOneTimeWalk bool
}

// BuildEvent shapes a translated, non-metric record into the wire Event.
// SourceType is sc4snmp:walk for one-time walks, sc4snmp:error if the body
// represents an error condition (or contains the literal token "error" or
// "NoSuchInstance", matching the source's substring heuristic), and
// sc4snmp:meta otherwise.
func BuildEvent(opts BuildEventOptions, body string, now time.Time) models.Event {
	st := models.SourceTypeMeta
	if opts.IsOneTimeWalk {
		st = models.SourceTypeWalk
	}
	if looksLikeError(body) {
		st = models.SourceTypeError
	}
	return models.Event{
		Time:       float64(now.UnixNano()) / 1e9,
		Host:       opts.Host,
		Index:      opts.Index,
		SourceType: st,
		EventBody:  body,
	}
}

func looksLikeError(body string) bool {
	return strings.Contains(body, "error") || strings.Contains(body, "NoSuchInstance")
}

// BuildMetricOptions carries the context needed to shape one published metric.
type BuildMetricOptions struct {
	Host             string
	Index            string
	FrequencySeconds int
	// EnricherFamilies is the set of OID families configured under
	// enricher.oidFamily; a metric name is stripped of its trailing row
	// index only if it belongs to one of these families (Open Question b).
	EnricherFamilies map[string]bool
	Dimensions       map[string]string
}

// BuildMetric shapes a translated metric record into the wire MetricPayload.
// metricValue must already have passed the classifier's IsFiniteFloat check;
// BuildMetric parses it so the wire field carries a JSON number, matching
// the documented `"metric_name:<name>": <numeric_value>` shape.
func BuildMetric(opts BuildMetricOptions, metricName, metricValue string, now time.Time) models.MetricPayload {
	name := stripTrailingIndexIfEnriched(metricName, opts.EnricherFamilies)

	fields := make(map[string]any, len(opts.Dimensions)+2)
	for k, v := range opts.Dimensions {
		fields[k] = v
	}
	if f, err := strconv.ParseFloat(metricValue, 64); err == nil {
		fields["metric_name:"+name] = f
	} else {
		fields["metric_name:"+name] = metricValue
	}
	fields["frequency"] = strconv.Itoa(opts.FrequencySeconds)

	return models.MetricPayload{
		Time:   float64(now.UnixNano()) / 1e9,
		Host:   opts.Host,
		Index:  opts.Index,
		Event:  "metric",
		Fields: fields,
	}
}

// stripTrailingIndexIfEnriched removes a "_<index>" suffix from metric names
// of the form "sc4snmp.<family>.<name>_<index>" when family is present in
// enricherFamilies, regardless of whether that family's rules populate
// existingVarBinds, additionalVarBinds, or both (Open Question b).
func stripTrailingIndexIfEnriched(name string, enricherFamilies map[string]bool) string {
	const prefix = "sc4snmp."
	if !strings.HasPrefix(name, prefix) {
		return name
	}
	rest := name[len(prefix):]
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return name
	}
	family := rest[:dot]
	if !enricherFamilies[family] {
		return name
	}
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name
	}
	suffix := name[idx+1:]
	if !isAllDigits(suffix) {
		return name
	}
	return name[:idx]
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

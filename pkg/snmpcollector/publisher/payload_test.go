package publisher_test

import (
	"testing"
	"time"

	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/publisher"
)

func TestBuildEvent_SourceTypeWalk(t *testing.T) {
	ev := publisher.BuildEvent(publisher.BuildEventOptions{
		Host: "10.0.0.1", Index: "netmon", IsOneTimeWalk: true,
	}, "sysDescr = Linux", time.Unix(100, 0))

	if ev.SourceType != "sc4snmp:walk" {
		t.Fatalf("expected sc4snmp:walk, got %s", ev.SourceType)
	}
}

func TestBuildEvent_SourceTypeError(t *testing.T) {
	ev := publisher.BuildEvent(publisher.BuildEventOptions{
		Host: "10.0.0.1", Index: "netmon",
	}, "NoSuchInstance", time.Unix(100, 0))

	if ev.SourceType != "sc4snmp:error" {
		t.Fatalf("expected sc4snmp:error, got %s", ev.SourceType)
	}
}

func TestBuildMetric_StripsTrailingIndexForEnrichedFamily(t *testing.T) {
	m := publisher.BuildMetric(publisher.BuildMetricOptions{
		Host: "10.0.0.1", Index: "netmon", FrequencySeconds: 60,
		EnricherFamilies: map[string]bool{"IF-MIB": true},
	}, "sc4snmp.IF-MIB.ifInOctets_1", "42", time.Unix(100, 0))

	if _, ok := m.Fields["metric_name:sc4snmp.IF-MIB.ifInOctets"]; !ok {
		t.Fatalf("expected stripped metric name field, got %+v", m.Fields)
	}
}

func TestBuildMetric_KeepsIndexForNonEnrichedFamily(t *testing.T) {
	m := publisher.BuildMetric(publisher.BuildMetricOptions{
		Host: "10.0.0.1", Index: "netmon", FrequencySeconds: 60,
		EnricherFamilies: map[string]bool{},
	}, "sc4snmp.SOME-MIB.counter_7", "42", time.Unix(100, 0))

	if _, ok := m.Fields["metric_name:sc4snmp.SOME-MIB.counter_7"]; !ok {
		t.Fatalf("expected untouched metric name field, got %+v", m.Fields)
	}
}

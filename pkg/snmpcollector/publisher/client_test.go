package publisher_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/publisher"
)

func TestPublishEvent_NoURLConfiguredIsNoop(t *testing.T) {
	c := publisher.New(publisher.Config{}, nil)
	// Must not panic or block.
	c.PublishEvent(models.Event{Host: "r1", Index: "netops"})
}

func TestPublishMetric_PostsToConfiguredURL(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		received <- buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := publisher.New(publisher.Config{MetricsURL: srv.URL}, nil)
	c.PublishMetric(models.MetricPayload{Host: "r1", Index: "em_metrics", Event: "metric"})

	select {
	case body := <-received:
		if !strings.Contains(string(body), "em_metrics") {
			t.Errorf("posted body missing index: %s", body)
		}
	default:
		t.Fatal("expected the gateway to receive a POST")
	}
}

func TestPublishEvent_GatewayRejectionIsLoggedNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := publisher.New(publisher.Config{EventsURL: srv.URL}, nil)
	c.PublishEvent(models.Event{Host: "r1", Index: "netops"})

	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1 (no retry)", attempts)
	}
}

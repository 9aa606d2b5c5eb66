package translator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/translator"
)

func newBinding(oid, plain string) models.RawBinding {
	return models.RawBinding{OID: oid, Kind: models.KindInteger, Plain: plain, Pretty: plain}
}

func TestTranslate_SuccessMetric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("sc4snmp.IF-MIB.ifInOctets_1"))
	}))
	defer srv.Close()

	c := translator.New(translator.Config{BaseURL: srv.URL}, nil)
	rec := c.Translate(context.Background(), newBinding("1.3.6.1.2.1.2.2.1.10.1", "42"))

	if !rec.IsMetric {
		t.Fatalf("expected IsMetric=true")
	}
	if rec.MetricName != "sc4snmp.IF-MIB.ifInOctets_1" {
		t.Fatalf("unexpected metric name: %q", rec.MetricName)
	}
}

func TestTranslate_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := translator.New(translator.Config{BaseURL: srv.URL, AttemptTimeout: time.Second}, nil)
	rec := c.Translate(context.Background(), newBinding("1.2.3", "not-a-number"))

	if rec.Text != "ok" {
		t.Fatalf("expected retried success, got %q after %d calls", rec.Text, calls)
	}
}

func TestTranslate_FallsBackOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := translator.New(translator.Config{BaseURL: srv.URL, AttemptTimeout: time.Second}, nil)
	b := newBinding("1.3.6.1.2.1.1.1.0", "not-a-number")
	rec := c.Translate(context.Background(), b)

	if rec.IsMetric {
		t.Fatalf("non-numeric binding must not classify as metric")
	}
	if rec.Text == "" {
		t.Fatalf("fallback text must not be empty")
	}
}

func TestTranslate_FallsBackOnExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := translator.New(translator.Config{BaseURL: srv.URL, AttemptTimeout: 200 * time.Millisecond, MaxRetries: 2}, nil)
	b := newBinding("1.3.6.1.2.1.1.1.0", "99.5")
	rec := c.Translate(context.Background(), b)

	if !rec.IsMetric {
		t.Fatalf("expected fallback metric classification to survive")
	}
	if rec.MetricValue != "99.5" {
		t.Fatalf("unexpected fallback value: %q", rec.MetricValue)
	}
}

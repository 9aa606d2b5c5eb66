package publisher

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sc4snmp/snmp-poller/models"
)

// Config controls Client behaviour.
type Config struct {
	EventsURL  string
	MetricsURL string

	// RequestTimeout bounds a single POST. No retry is attempted — the
	// ingest gateway is responsible for durability.
	RequestTimeout time.Duration

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
	return c
}

// Client POSTs shaped payloads to the ingest gateway's two endpoints.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a Client. A nil logger is replaced with a discarding one.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{cfg: cfg.withDefaults(), logger: logger}
}

// Close is a no-op; Client holds no resources that outlive a request.
func (c *Client) Close() error {
	return nil
}

// PublishEvent POSTs ev to the events URL. Connection errors are logged and
// swallowed; the record is dropped with no retry, matching the Error
// Handling Design's ingest-publish-error policy.
func (c *Client) PublishEvent(ev models.Event) {
	c.post(c.cfg.EventsURL, ev, "event")
}

// PublishMetric POSTs m to the metrics URL. Same failure policy as
// PublishEvent.
func (c *Client) PublishMetric(m models.MetricPayload) {
	c.post(c.cfg.MetricsURL, m, "metric")
}

func (c *Client) post(url string, payload any, kind string) {
	if url == "" {
		c.logger.Debug("publisher: no url configured, dropping record", "kind", kind)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("publisher: marshal failed", "kind", kind, "error", err.Error())
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("publisher: build request failed", "kind", kind, "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("publisher: connection error, dropping record",
			"kind", kind, "url", url, "error", err.Error())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		c.logger.Warn("publisher: gateway rejected record",
			"kind", kind, "status", resp.StatusCode)
		return
	}
	c.logger.Debug("publisher: sent", "kind", kind, "bytes", len(body))
}

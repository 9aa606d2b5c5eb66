// Package translator implements the Binding Classifier & Translator Client:
// it classifies a raw SNMP binding as a metric or an event, and asks the
// external translation service for its symbolic form, retrying transient
// failures and falling back to a locally-shaped record when the service is
// unavailable.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sc4snmp/snmp-poller/models"
)

// DataFormat selects the shape the translation service should respond with.
type DataFormat string

const (
	FormatText        DataFormat = "TEXT"
	FormatMetric      DataFormat = "METRIC"
	FormatMultiMetric DataFormat = "MULTIMETRIC"
)

// Config controls Client behaviour.
type Config struct {
	// BaseURL is the translation service's base URL, e.g. "http://mibs-server".
	BaseURL string

	// AttemptTimeout bounds a single HTTP attempt. Clamped into [1s, 5s].
	AttemptTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt (spec: 2,
	// for 3 attempts total).
	MaxRetries uint64

	// HTTPClient is reused across calls; a zero value gets a sane default.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 3 * time.Second
	}
	if c.AttemptTimeout < time.Second {
		c.AttemptTimeout = time.Second
	}
	if c.AttemptTimeout > 5*time.Second {
		c.AttemptTimeout = 5 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}

// wirePayload is the binding shape POSTed to the translation service.
type wirePayload struct {
	VarBinds []wireVarBind `json:"var_binds"`
}

type wireVarBind struct {
	OID     string `json:"oid"`
	OIDType string `json:"oid_type"`
	Val     string `json:"val"`
	ValType string `json:"val_type"`
}

// TranslatedRecord is the result of a translator round trip, or its
// fallback, never distinguishable by the caller.
type TranslatedRecord struct {
	Format      DataFormat
	Text        string
	IsMetric    bool
	MetricName  string
	MetricValue string
}

// Client is the production Binding Classifier & Translator Client.
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

// Translate classifies binding and asks the translation service for its
// symbolic form. It never returns an error: on any unrecoverable failure it
// falls back to a locally-shaped record built from the raw OID and value.
func (c *Client) Translate(ctx context.Context, binding models.RawBinding) TranslatedRecord {
	isMetric := binding.IsMetric()
	format := FormatText
	if isMetric {
		format = FormatMetric
	}

	text, err := c.requestWithRetry(ctx, binding, format)
	if err != nil {
		c.logger.Warn("translator: falling back to raw shape",
			"oid", binding.OID, "error", err.Error())
		return c.fallback(binding, isMetric, format)
	}

	rec := TranslatedRecord{Format: format, Text: text, IsMetric: isMetric}
	if isMetric {
		rec.MetricName = text
		rec.MetricValue = binding.Plain
		// Post-translation sanity check on MetricValue, which is the
		// binding's own raw value; IsMetric has already found it numeric,
		// so this branch is not taken. The service's response body is not
		// parsed for a value.
		if !models.IsFiniteFloat(rec.MetricValue) {
			c.logger.Debug("translator: metric sanity check failed, re-requesting as text",
				"oid", binding.OID)
			text2, err2 := c.requestWithRetry(ctx, binding, FormatText)
			if err2 != nil {
				return c.fallback(binding, false, FormatText)
			}
			return TranslatedRecord{Format: FormatText, Text: text2, IsMetric: false}
		}
	}
	return rec
}

func (c *Client) fallback(binding models.RawBinding, isMetric bool, format DataFormat) TranslatedRecord {
	if isMetric {
		return TranslatedRecord{
			Format:      format,
			Text:        fmt.Sprintf("%s = %s", binding.OID, binding.Plain),
			IsMetric:    true,
			MetricName:  binding.OID,
			MetricValue: binding.Plain,
		}
	}
	val, _ := binding.RenderForTranslator()
	return TranslatedRecord{
		Format:   format,
		Text:     fmt.Sprintf("%s = %s", binding.OID, val),
		IsMetric: false,
	}
}

func (c *Client) requestWithRetry(ctx context.Context, binding models.RawBinding, format DataFormat) (string, error) {
	bo := backoff.NewExponentialBackOff()
	policy := backoff.WithMaxRetries(bo, c.cfg.MaxRetries)

	var result string
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()

		text, retriable, err := c.doRequest(attemptCtx, binding, format)
		if err != nil {
			if retriable {
				return err
			}
			return backoff.Permanent(err)
		}
		result = text
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, binding models.RawBinding, format DataFormat) (text string, retriable bool, err error) {
	val, valType := binding.RenderForTranslator()
	body, err := json.Marshal(wirePayload{VarBinds: []wireVarBind{{
		OID:     binding.OID,
		OIDType: "ObjectIdentifier",
		Val:     val,
		ValType: valType,
	}}})
	if err != nil {
		return "", false, fmt.Errorf("translator: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/translation?data_format=%s", c.cfg.BaseURL, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("translator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		// Transport-level failure (timeout, connection refused, ...): retriable.
		return "", true, fmt.Errorf("translator: transport error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		return string(respBody), false, nil
	}
	if isRetriableStatus(resp.StatusCode) {
		return "", true, fmt.Errorf("translator: retriable status %d", resp.StatusCode)
	}
	return "", false, fmt.Errorf("translator: rejected with status %d", resp.StatusCode)
}

func isRetriableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

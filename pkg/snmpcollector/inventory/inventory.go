// Package inventory parses and validates the CSV inventory file describing
// desired polling work. No third-party CSV library appears anywhere in
// the retrieved example corpus, so this parser is built on the standard
// library's encoding/csv, matching the validation rules of the original
// implementation's parse_inventory_file / inventory_validator.py.
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Record mirrors models.InventoryRecord field-for-field before frequency
// resolution; kept separate so validation errors can be reported with the
// original string fields still attached.
type Record struct {
	Host          string
	Version       string
	Community     string
	Profile       string
	FreqInSeconds string
}

var allowedVersions = map[string]bool{"1": true, "2c": true, "3": true}

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)
var oidLiteralPattern = regexp.MustCompile(`^\d+(\.\d+)*(\.\*)?$`)

// ShouldProcessLine reports whether a raw host field should be considered
// at all: non-blank and not commented out with a leading "#".
func ShouldProcessLine(host string) bool {
	h := strings.TrimSpace(host)
	return h != "" && !strings.HasPrefix(h, "#")
}

// IsValidHost validates "host" or "host:port" by attempting to resolve the
// hostname and, if a port is present, checking it falls in [1, 65535].
func IsValidHost(host string) bool {
	parts := strings.Split(host, ":")
	switch len(parts) {
	case 1:
		return resolves(parts[0])
	case 2:
		if !resolves(parts[0]) {
			return false
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return false
		}
		return port >= 1 && port <= 65535
	default:
		return false
	}
}

func resolves(hostname string) bool {
	if hostname == "" {
		return false
	}
	if net.ParseIP(hostname) != nil {
		return true
	}
	_, err := net.LookupHost(hostname)
	return err == nil
}

// IsValidVersion reports whether v is one of "1", "2c", "3".
func IsValidVersion(v string) bool { return allowedVersions[v] }

// IsValidCommunity reports whether community is non-blank.
func IsValidCommunity(c string) bool { return strings.TrimSpace(c) != "" }

// IsValidProfile reports whether profile is the dynamic wildcard "*", a
// bare symbolic name, or an OID literal (optionally ending in ".*").
func IsValidProfile(p string) bool {
	if p == "*" {
		return true
	}
	if oidLiteralPattern.MatchString(p) {
		return true
	}
	return profileNamePattern.MatchString(p)
}

// IsValidFrequency reports whether s is absent or a positive integer.
func IsValidFrequency(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// Validate runs every validation rule and returns the first failure reason,
// or "" if the record is valid.
func Validate(r Record) string {
	if !IsValidHost(r.Host) {
		return "invalid host"
	}
	if !IsValidVersion(r.Version) {
		return "invalid version"
	}
	if !IsValidCommunity(r.Community) {
		return "blank community"
	}
	if !IsValidProfile(r.Profile) {
		return "invalid profile"
	}
	if !IsValidFrequency(r.FreqInSeconds) {
		return "invalid frequency"
	}
	return ""
}

// Frequency parses FreqInSeconds, returning 0 when absent (caller resolves
// the effective frequency from the matched Profile or a default).
func (r Record) Frequency() int {
	if strings.TrimSpace(r.FreqInSeconds) == "" {
		return 0
	}
	n, _ := strconv.Atoi(r.FreqInSeconds)
	return n
}

// Parse reads the CSV inventory format (header required: host, version,
// community, profile, freqinseconds), skipping blank/commented rows and
// dropping invalid rows with a logged reason. Column order in the header is
// respected; unknown extra columns are ignored.
func Parse(r io.Reader, logger *slog.Logger) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("inventory: read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"host", "version", "community", "profile", "freqinseconds"} {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("inventory: missing required column %q", required)
		}
	}

	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("inventory: read row: %w", err)
		}

		rec := Record{
			Host:          field(row, colIdx["host"]),
			Version:       field(row, colIdx["version"]),
			Community:     field(row, colIdx["community"]),
			Profile:       field(row, colIdx["profile"]),
			FreqInSeconds: field(row, colIdx["freqinseconds"]),
		}

		if !ShouldProcessLine(rec.Host) {
			continue
		}
		if reason := Validate(rec); reason != "" {
			if logger != nil {
				logger.Warn("inventory: dropping invalid row", "host", rec.Host, "reason", reason)
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

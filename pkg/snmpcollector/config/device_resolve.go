package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sc4snmp/snmp-poller/models"
)

const (
	defaultPort               = 161
	defaultTimeoutMillis      = 3000
	defaultRetries            = 2
	defaultMaxConcurrentPolls = 4
)

// ResolveDeviceConfig builds the connection configuration for one poll
// target from its InventoryRecord snapshot and the server config's
// credential tables. For v1/v2c the record's Credential is used directly as
// the community string; the communities table is not consulted. For v3 the
// Credential must name an entry in usernames.
func ResolveDeviceConfig(rec models.InventoryRecord, communities map[string]CommunityConfig, usernames map[string]UsernameConfig) (DeviceConfig, error) {
	ip, port, err := splitHostPort(rec.Host)
	if err != nil {
		return DeviceConfig{}, err
	}

	cfg := DeviceConfig{
		IP:                 ip,
		Port:               port,
		Timeout:            defaultTimeoutMillis,
		Retries:            defaultRetries,
		Version:            rec.Version,
		MaxConcurrentPolls: defaultMaxConcurrentPolls,
	}

	switch rec.Version {
	case "1", "2c":
		// The community name itself is the wire community string; the
		// communities table only adds optional mpModel tagging metadata
		// (contextEngineId, tag, ...) that this poll path does not need.
		cfg.Community = rec.Credential
	case "3":
		user, ok := usernames[rec.Credential]
		if !ok {
			return DeviceConfig{}, fmt.Errorf("config: unknown v3 username %q", rec.Credential)
		}
		cfg.V3User = &user
	default:
		return DeviceConfig{}, fmt.Errorf("config: unsupported SNMP version %q", rec.Version)
	}

	return cfg, nil
}

func splitHostPort(host string) (ip string, port int, err error) {
	parts := strings.SplitN(host, ":", 2)
	if len(parts) == 1 {
		return parts[0], defaultPort, nil
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil || p < 1 || p > 65535 {
		return "", 0, fmt.Errorf("config: invalid port in host %q", host)
	}
	return parts[0], p, nil
}

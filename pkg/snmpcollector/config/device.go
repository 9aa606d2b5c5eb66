package config

// DeviceConfig is the fully-resolved per-poll connection configuration for
// a single (host, profile) job, built by ResolveDeviceConfig from an
// InventoryRecord plus the server config's communities/usernames tables.
type DeviceConfig struct {
	// IP is the management address of the device (no port suffix).
	IP string

	// Port is the UDP port for SNMP requests (default 161).
	Port int

	// Timeout is the per-request timeout in milliseconds (default 3000).
	Timeout int

	// Retries is the number of retry attempts on timeout (default 2).
	Retries int

	// ExponentialTimeout enables exponential backoff between retries.
	ExponentialTimeout bool

	// Version is the SNMP version: "1", "2c", or "3".
	Version string

	// Community is the v1/v2c community string. Empty for v3.
	Community string

	// V3User holds the resolved SNMPv3 credential, or nil for v1/v2c.
	V3User *UsernameConfig

	// MaxConcurrentPolls limits how many concurrent SNMP requests may be
	// in-flight to this device at any time (default 4).
	MaxConcurrentPolls int
}

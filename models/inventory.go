package models

import "encoding/json"

// InventoryRecord is one row of desired polling work, as parsed from the
// inventory CSV. It is an immutable value: two records with the same five
// fields are considered equal for scheduling purposes.
type InventoryRecord struct {
	// Host is "hostname" or "hostname:port". Port defaults to 161 when absent.
	Host string

	// Version is "1", "2c", or "3".
	Version string

	// Credential is the community name for v1/v2c, or the username for v3.
	Credential string

	// Profile is a symbolic profile name, a literal OID, an OID ending in
	// ".*", or the literal "*" meaning "match dynamically".
	Profile string

	// FrequencySeconds is the poll interval. Zero means "absent" — the
	// frequency must then come from the matched Profile or the default.
	FrequencySeconds int
}

// EntryKey returns the composite "host#profile" key used to identify a
// ScheduledJob uniquely.
func (r InventoryRecord) EntryKey() string {
	return r.Host + "#" + r.Profile
}

// IsDynamicProfile reports whether this record's profile must be resolved by
// the profile-matching task rather than used directly.
func (r InventoryRecord) IsDynamicProfile() bool {
	return r.Profile == "*"
}

// inventoryJSON mirrors InventoryRecord field-for-field for JSON round trips.
type inventoryJSON struct {
	Host             string `json:"host"`
	Version          string `json:"version"`
	Credential       string `json:"credential"`
	Profile          string `json:"profile"`
	FrequencySeconds int    `json:"frequency_seconds,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r InventoryRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(inventoryJSON{
		Host:             r.Host,
		Version:          r.Version,
		Credential:       r.Credential,
		Profile:          r.Profile,
		FrequencySeconds: r.FrequencySeconds,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *InventoryRecord) UnmarshalJSON(data []byte) error {
	var j inventoryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.Host = j.Host
	r.Version = j.Version
	r.Credential = j.Credential
	r.Profile = j.Profile
	r.FrequencySeconds = j.FrequencySeconds
	return nil
}

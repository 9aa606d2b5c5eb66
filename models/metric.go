// Package models defines the core data structures shared across all layers of
// the SNMP Collector. These types represent the canonical in-memory form of all
// collected data; every other package depends on this package and nothing here
// depends on any other internal package.
package models

// Device carries identifying information about the monitored network device.
// Optional fields are populated as they become known (e.g. from sysDescr polling).
type Device struct {
	Hostname    string            `json:"hostname"`
	IPAddress   string            `json:"ip_address"`
	SNMPVersion string            `json:"snmp_version"` // "1", "2c", or "3"
	Vendor      string            `json:"vendor,omitempty"`
	Model       string            `json:"model,omitempty"`
	SysDescr    string            `json:"sys_descr,omitempty"`
	SysLocation string            `json:"sys_location,omitempty"`
	SysContact  string            `json:"sys_contact,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"` // Static labels from device config
}

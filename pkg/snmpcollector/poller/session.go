// Package poller implements the SNMP polling stage of the pipeline.
// It converts device configuration into live gosnmp sessions, manages a
// per-device connection pool, and executes Get / BulkWalk operations that
// produce RawPollResult messages consumed by the decoder stage.
package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/sc4snmp/snmp-poller/pkg/snmpcollector/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — DeviceConfig → *gosnmp.GoSNMP
// ─────────────────────────────────────────────────────────────────────────────

// NewSession creates and connects a gosnmp session for the given device
// configuration. The caller is responsible for calling Close when the session
// is no longer needed.
func NewSession(cfg config.DeviceConfig) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:             cfg.IP,
		Port:               uint16(cfg.Port),
		Timeout:            time.Duration(cfg.Timeout) * time.Millisecond,
		Retries:            cfg.Retries,
		ExponentialTimeout: cfg.ExponentialTimeout,
		MaxOids:            60,
	}

	switch cfg.Version {
	case "1":
		// mpModel=0
		g.Version = gosnmp.Version1
		g.Community = cfg.Community
	case "2c":
		// mpModel=1
		g.Version = gosnmp.Version2c
		g.Community = cfg.Community
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		if cfg.V3User != nil {
			cred := *cfg.V3User
			g.MsgFlags = snmpv3MsgFlags(cred)
			g.ContextEngineID = cred.ContextEngineID
			g.ContextName = cred.ContextName
			g.SecurityParameters = &gosnmp.UsmSecurityParameters{
				UserName:                 cred.SecurityName,
				AuthenticationProtocol:   mapAuthProto(cred.AuthProtocol),
				AuthenticationPassphrase: cred.AuthKey,
				PrivacyProtocol:          mapPrivProto(cred.PrivProtocol),
				PrivacyPassphrase:        cred.PrivKey,
				AuthoritativeEngineID:    cred.SecurityEngineID,
			}
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.IP, cfg.Port, err)
	}
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred config.UsernameConfig) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthProtocol != "" &&
		!strings.EqualFold(cred.AuthProtocol, "noauth")
	hasPriv := cred.PrivProtocol != "" &&
		!strings.EqualFold(cred.PrivProtocol, "nopriv")

	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}

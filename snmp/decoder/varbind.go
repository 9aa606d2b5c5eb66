package decoder

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/sc4snmp/snmp-poller/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// DecodedVarbind
// ─────────────────────────────────────────────────────────────────────────────

// DecodedVarbind is the result of decoding a single gosnmp.SnmpPDU against an
// ObjectDefinition. The Decoder returns them as DecodedPollResult.Varbinds.
type DecodedVarbind struct {
	// OID is the full numeric OID of the varbind, normalised without leading dot.
	OID string

	// AttributeName is the resolved config attribute name, e.g. "netif.bytes.in".
	AttributeName string

	// Instance is the table row index suffix extracted from the OID,
	// e.g. "1" for a table row or "192.168.1.1.5" for a compound index.
	// "0" for a scalar (non-table) object.
	Instance string

	// Value is the converted native Go value (int64, uint64, float64, string, []byte).
	Value interface{}

	// SNMPType is the human-readable SNMP PDU type string, e.g. "Counter64".
	SNMPType string

	// Syntax is the config syntax string verbatim, e.g. "BandwidthMBits".
	Syntax string

	// IsTag indicates whether this attribute is a dimension label rather than
	// a numeric metric.
	IsTag bool
}

// ─────────────────────────────────────────────────────────────────────────────
// VarbindParser
// ─────────────────────────────────────────────────────────────────────────────

// VarbindParser parses a slice of raw gosnmp PDUs against a known ObjectDefinition,
// producing a slice of DecodedVarbinds. It is stateless and safe for concurrent use.
type VarbindParser struct {
	// attrByOID maps normalised attribute OIDs (no leading dot) to their
	// AttributeDefinition. Built once from the ObjectDefinition at construction.
	attrByOID map[string]models.AttributeDefinition
}

// NewVarbindParser constructs a VarbindParser for the given ObjectDefinition.
// It pre-computes the OID lookup map so that parsing each varbind is O(1).
func NewVarbindParser(def models.ObjectDefinition) (*VarbindParser, error) {
	if len(def.Attributes) == 0 {
		return nil, fmt.Errorf("object definition %q has no attributes", def.Key)
	}

	attrByOID := make(map[string]models.AttributeDefinition, len(def.Attributes))
	for _, attr := range def.Attributes {
		norm := normaliseOID(attr.OID)
		if norm == "" {
			return nil, fmt.Errorf(
				"attribute %q in object %q has an empty OID", attr.Name, def.Key,
			)
		}
		attrByOID[norm] = attr
	}

	return &VarbindParser{attrByOID: attrByOID}, nil
}

// Parse converts raw gosnmp PDUs to DecodedVarbinds.
//
// PDUs whose OID does not match any attribute in the ObjectDefinition are
// silently skipped — this is normal behaviour for GetBulk responses which often
// return OIDs beyond the requested range.
//
// PDUs with error types (NoSuchObject, NoSuchInstance, EndOfMibView) are also
// silently skipped; the caller can inspect the returned slice length to detect
// whether all expected attributes were collected.
func (p *VarbindParser) Parse(pdus []gosnmp.SnmpPDU) ([]DecodedVarbind, error) {
	result := make([]DecodedVarbind, 0, len(pdus))

	for i := range pdus {
		pdu := &pdus[i]

		// Skip error sentinels before doing any work.
		if IsErrorType(pdu.Type) {
			continue
		}

		fullOID := normaliseOID(pdu.Name)

		attr, instance, found := p.matchAttribute(fullOID)
		if !found {
			// OID is outside the polled sub-tree; normal for bulk walks.
			continue
		}

		convertedValue, err := ConvertValue(pdu.Type, pdu.Value, attr.Syntax)
		if err != nil {
			// Stops the parse: the varbinds decoded so far are returned with
			// the error. The caller (Decoder) is responsible for structured logging.
			return result, fmt.Errorf(
				"oid %s (attr %s, syntax %s): value conversion failed: %w",
				fullOID, attr.Name, attr.Syntax, err,
			)
		}

		result = append(result, DecodedVarbind{
			OID:           fullOID,
			AttributeName: attr.Name,
			Instance:      instance,
			Value:         convertedValue,
			SNMPType:      PDUTypeString(pdu.Type),
			Syntax:        attr.Syntax,
			IsTag:         attr.IsTag,
		})
	}

	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// matchAttribute looks up an attribute by OID prefix matching: it peels the
// varbind's OID from the right one dotted component at a time, looking for
// the longest prefix that names a column in attrByOID.
//
// A table varbind OID like "1.3.6.1.2.1.2.2.1.10.1" matches attribute OID
// "1.3.6.1.2.1.2.2.1.10"; everything after the matched prefix ("1", or
// "192.168.1.1.5" for a compound row index) is returned as the instance.
// A scalar OID matches itself exactly (the ".0" suffix is part of attrByOID's
// key), and its instance is reported as "0".
func (p *VarbindParser) matchAttribute(fullOID string) (attr models.AttributeDefinition, instance string, found bool) {
	if a, ok := p.attrByOID[fullOID]; ok {
		return a, "0", true
	}

	prefix := fullOID
	for {
		dot := strings.LastIndex(prefix, ".")
		if dot < 0 {
			return models.AttributeDefinition{}, "", false
		}
		prefix = prefix[:dot]

		if a, ok := p.attrByOID[prefix]; ok {
			return a, fullOID[len(prefix)+1:], true
		}
	}
}

// normaliseOID strips a leading dot and any whitespace from an OID string.
// All OIDs inside this package are stored and compared in the no-leading-dot form.
func normaliseOID(oid string) string {
	oid = strings.TrimSpace(oid)
	return strings.TrimPrefix(oid, ".")
}

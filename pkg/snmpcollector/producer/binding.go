// Package producer turns a decoded varbind into the models.RawBinding shape
// the Binding Classifier & Translator Client operates on.
package producer

import (
	"fmt"

	"github.com/sc4snmp/snmp-poller/models"
	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// bindingKindBySNMPType maps decoder.PDUTypeString's output back to a
// models.BindingKind. The synthesized ObjectDefinitions this collector
// builds always leave Syntax empty, so every DecodedVarbind.Value was
// produced by the decoder's fallbackConvert path keyed on the raw PDU type
// — this table mirrors that same switch from the translator's side.
var bindingKindBySNMPType = map[string]models.BindingKind{
	"OctetString":       models.KindOctetString,
	"ObjectDescription": models.KindOctetString,
	"IpAddress":         models.KindIPAddress,
	"Opaque":            models.KindOpaque,
	"OpaqueFloat":       models.KindOpaque,
	"OpaqueDouble":      models.KindOpaque,
	"Integer":           models.KindInteger,
	"Counter32":         models.KindCounter32,
	"Counter64":         models.KindCounter64,
	"Gauge32":           models.KindGauge32,
	"Unsigned32":        models.KindGauge32,
	"TimeTicks":         models.KindTimeTicks,
	"ObjectIdentifier":  models.KindObjectIdentifier,
	"Null":              models.KindNull,
}

// BuildRawBinding converts one decoded varbind into the RawBinding the
// translator classifies and ships to the translation service. OID carries
// the table row instance back on (FullOID in dotted form) so the translator
// and any downstream enrichment can key off it.
func BuildRawBinding(dv decoder.DecodedVarbind) models.RawBinding {
	kind, ok := bindingKindBySNMPType[dv.SNMPType]
	if !ok {
		kind = models.KindOctetString
	}

	oid := dv.OID
	plain := fmt.Sprintf("%v", dv.Value)
	pretty := plain
	if b, ok := dv.Value.([]byte); ok {
		pretty = string(b)
		plain = pretty
	}

	return models.RawBinding{
		OID:    oid,
		Kind:   kind,
		Pretty: pretty,
		Plain:  plain,
	}
}

package models

import (
	"fmt"
	"math"
	"strconv"
)

// BindingKind is the tag of the RawBinding sum type, one variant per ASN.1
// type gosnmp actually produces. It exists so value stringification can
// switch on kind instead of inspecting Go's dynamic type at each call site.
type BindingKind int

const (
	KindOctetString BindingKind = iota
	KindIPAddress
	KindOpaque
	KindInteger
	KindCounter32
	KindCounter64
	KindGauge32
	KindTimeTicks
	KindObjectIdentifier
	KindNull
)

// RawBinding is one SNMP variable binding, tagged with its ASN.1 kind and
// carrying both the raw pretty-printed form and, where applicable, a native
// numeric value. It is the stand-in for pysnmp's dynamically typed varbind
// (see the "Dynamic typing of SNMP values" design note).
type RawBinding struct {
	OID   string
	Kind  BindingKind
	Pretty string // PDU's own pretty-print form, e.g. gosnmp's SnmpPDU rendering.
	Plain  string // plain string conversion (decimal for numerics).
}

// RenderForTranslator returns the (val, val_type) pair the translation
// service expects. OctetString, IpAddress, and Opaque use the pretty-print
// form; every other kind uses the plain conversion. This implements the
// compatibility contract described for the Binding Classifier.
func (b RawBinding) RenderForTranslator() (value, valueType string) {
	switch b.Kind {
	case KindOctetString:
		return b.Pretty, "OctetString"
	case KindIPAddress:
		return b.Pretty, "IpAddress"
	case KindOpaque:
		return b.Pretty, "Opaque"
	case KindInteger:
		return b.Plain, "Integer"
	case KindCounter32:
		return b.Plain, "Counter32"
	case KindCounter64:
		return b.Plain, "Counter64"
	case KindGauge32:
		return b.Plain, "Gauge32"
	case KindTimeTicks:
		return b.Plain, "TimeTicks"
	case KindObjectIdentifier:
		return b.Plain, "ObjectIdentifier"
	default:
		return b.Plain, "Null"
	}
}

// IsMetric reports whether the binding's value parses as a finite
// floating-point number — the classification rule shared by the Binding
// Classifier and the post-translation sanity check.
func (b RawBinding) IsMetric() bool {
	return IsFiniteFloat(b.Plain)
}

// IsFiniteFloat reports whether s parses as a finite float64 (signed and
// scientific notation included). NaN and Inf are not considered metrics.
func IsFiniteFloat(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// String implements fmt.Stringer for debugging/log fields.
func (b RawBinding) String() string {
	return fmt.Sprintf("%s=%s(%s)", b.OID, b.Plain, b.Pretty)
}

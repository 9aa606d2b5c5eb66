package decoder

import (
	"github.com/sc4snmp/snmp-poller/models"
)

// ObjectDefinitionForSelector builds the models.ObjectDefinition a
// VarbindParser needs to decode the response to one VarBindSelector. There
// is no YAML object-definition tree behind this: a selector already carries
// everything the decoder needs (the OID to match against, and whether it
// is a scalar GET or a table BULK), so the definition is synthesised
// on the spot rather than looked up.
//
// Scalar selectors (SelectorGet) register their full OID — including any
// tuple index suffix — so VarbindParser's direct-match path fires and
// reports instance "0". Subtree selectors (SelectorBulk) register the bare
// column OID so VarbindParser's prefix-scan extracts the real row instance.
func ObjectDefinitionForSelector(profileName string, sel models.VarBindSelector) models.ObjectDefinition {
	name := sel.Name
	if name == "" {
		name = sel.OID
	}

	attrOID := sel.OID
	if sel.Kind == models.SelectorGet {
		attrOID = sel.FullOID()
	}

	key := sel.MIB
	if key == "" {
		key = profileName
	}
	key += "::" + name

	def := models.ObjectDefinition{
		Key:    key,
		MIB:    sel.MIB,
		Object: name,
		Attributes: map[string]models.AttributeDefinition{
			name: {
				OID:    attrOID,
				Name:   name,
				Syntax: "",
				IsTag:  false,
			},
		},
	}

	// A non-empty Index is the poller's signal (via isScalar) that this
	// object is a table to BulkWalk/Walk rather than a scalar to Get.
	if sel.Kind == models.SelectorBulk {
		def.Index = []models.IndexDefinition{{OID: sel.OID, Name: name}}
	}

	return def
}

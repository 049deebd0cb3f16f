package crm

import (
	"fmt"
	"html"
	"strings"
)

// System fields that never travel to the provider: they are either local
// bookkeeping or remote-managed timestamps.
var systemFields = map[string]struct{}{
	"id":       {},
	"uuid":     {},
	"type":     {},
	"language": {},
	"created":  {},
	"changed":  {},
}

// FieldDefinition describes one mapped field. Remote is the provider-side
// name (empty means derive it from the local name), Computed and ReadOnly
// fields are never written back, Numeric controls sort comparison.
type FieldDefinition struct {
	Remote   string
	Computed bool
	ReadOnly bool
	Numeric  bool
}

// wireResource is a JSON:API-style resource object as the provider sends
// and receives it.
type wireResource struct {
	Type       string                 `json:"type,omitempty"`
	ID         string                 `json:"id,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// wireEnvelope wraps a single resource for push calls.
type wireEnvelope struct {
	Data wireResource `json:"data"`
}

// listResponse is the list endpoint's response body.
type listResponse struct {
	Data []wireResource `json:"data"`
}

// Transformer maps between the provider's wire schema and the flat local
// record shape.
type Transformer struct {
	// resourceType is the provider resource type attached to push envelopes
	resourceType string
	// businessKey is the attribute holding the business-visible id
	businessKey string
	// fields maps local field names to their definitions
	fields map[string]FieldDefinition
	// skipFields are additional locally configured names never written back
	skipFields map[string]struct{}
}

// NewTransformer creates a transformer. businessKey defaults to
// "case_number" when empty.
func NewTransformer(resourceType, businessKey string, fields map[string]FieldDefinition, skipFields []string) *Transformer {
	if businessKey == "" {
		businessKey = "case_number"
	}
	if fields == nil {
		fields = make(map[string]FieldDefinition)
	}
	skip := make(map[string]struct{}, len(skipFields))
	for _, name := range skipFields {
		skip[name] = struct{}{}
	}
	return &Transformer{
		resourceType: resourceType,
		businessKey:  businessKey,
		fields:       fields,
		skipFields:   skip,
	}
}

// BusinessKey returns the attribute name used as the business id.
func (t *Transformer) BusinessKey() string {
	return t.businessKey
}

// IsNumeric reports whether a field sorts numerically.
func (t *Transformer) IsNumeric(field string) bool {
	return t.fields[field].Numeric
}

// Flatten converts a wire resource into a flat record. The remote identifier
// becomes the uuid; the business id comes from the business-key attribute,
// falling back to the remote identifier when that attribute is absent.
// String attribute values are HTML-entity-decoded here, exactly once.
func (t *Transformer) Flatten(resource wireResource) *Record {
	record := &Record{
		UUID:       resource.ID,
		Attributes: make(map[string]interface{}, len(resource.Attributes)),
	}

	for name, value := range resource.Attributes {
		if s, ok := value.(string); ok {
			record.Attributes[name] = html.UnescapeString(s)
		} else {
			record.Attributes[name] = value
		}
	}

	if key, ok := record.Attributes[t.businessKey].(string); ok && key != "" {
		record.ID = key
	} else {
		record.ID = resource.ID
	}

	return record
}

// FlattenAll converts a list response into an ordered record set keyed by
// business id.
func (t *Transformer) FlattenAll(response listResponse) *RecordSet {
	set := NewRecordSet()
	for _, resource := range response.Data {
		set.Add(t.Flatten(resource))
	}
	return set
}

// WireEnvelope builds the push-call body for a record. System fields,
// configured skip fields, computed and read-only definitions, and empty
// values are all excluded. Field names are translated through the mapping
// table; unmapped names pass through with a local "field_" prefix stripped.
// For updates, the remote uuid is attached as the resource identifier.
func (t *Transformer) WireEnvelope(record *Record, update bool) wireEnvelope {
	attributes := make(map[string]interface{})

	for name, value := range record.Attributes {
		if _, skip := systemFields[name]; skip {
			continue
		}
		if _, skip := t.skipFields[name]; skip {
			continue
		}
		def, defined := t.fields[name]
		if defined && (def.Computed || def.ReadOnly) {
			continue
		}
		if isEmptyValue(value) {
			continue
		}

		remote := def.Remote
		if remote == "" {
			remote = strings.TrimPrefix(name, "field_")
		}
		attributes[remote] = value
	}

	envelope := wireEnvelope{Data: wireResource{
		Type:       t.resourceType,
		Attributes: attributes,
	}}
	if update {
		envelope.Data.ID = record.UUID
	}
	return envelope
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return fmt.Sprintf("%v", v) == ""
	}
}

package model

import (
	"encoding/json"
	"fmt"
)

// MaxAttributeNameLen bounds ConnectorObject.Attributes keys per spec.md §3.
const MaxAttributeNameLen = 128

// ConnectorObject is a single remote entity surfaced by a connector.
type ConnectorObject struct {
	ObjectClass string                    `json:"objectClass"`
	UID         string                    `json:"uid"`
	Name        string                    `json:"name,omitempty"`
	Attributes  map[string]AttributeValue `json:"-"`
}

// MarshalJSON renders the fixed fields (objectClass, uid, name) at the top
// level and the attribute map, converted to plain JSON values, under a
// nested "attributes" object.
func (o ConnectorObject) MarshalJSON() ([]byte, error) {
	attrs, err := AttributesToJSON(o.Attributes)
	if err != nil {
		return nil, fmt.Errorf("marshal connector object %s/%s: %w", o.ObjectClass, o.UID, err)
	}
	type wire struct {
		ObjectClass string         `json:"objectClass"`
		UID         string         `json:"uid"`
		Name        string         `json:"name,omitempty"`
		Attributes  map[string]any `json:"attributes"`
	}
	return json.Marshal(wire{
		ObjectClass: o.ObjectClass,
		UID:         o.UID,
		Name:        o.Name,
		Attributes:  attrs,
	})
}

// Validate enforces the ConnectorObject invariants from spec.md §3: required
// objectClass/uid, and attribute keys that are non-empty and within the
// length bound.
func (o ConnectorObject) Validate() error {
	if o.ObjectClass == "" {
		return fmt.Errorf("objectClass is required")
	}
	if o.UID == "" {
		return fmt.Errorf("uid is required")
	}
	for k, v := range o.Attributes {
		if k == "" {
			return fmt.Errorf("attribute name must not be empty")
		}
		if len(k) > MaxAttributeNameLen {
			return fmt.Errorf("attribute name %q exceeds %d characters", k, MaxAttributeNameLen)
		}
		if err := ValidateDepth(v); err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
	}
	return nil
}

// DeletedMarkerKey is the attribute key used to convey deleted objects in a
// sync result, per spec.md §4 (sync).
const DeletedMarkerKey = "__DELETED__"

// NewDeletedObject builds the tombstone shape spec.md's sync result uses for
// deletions: {objectClass, uid, attributes:{__DELETED__:true}}.
func NewDeletedObject(objectClass, uid string) ConnectorObject {
	return ConnectorObject{
		ObjectClass: objectClass,
		UID:         uid,
		Attributes: map[string]AttributeValue{
			DeletedMarkerKey: BoolValue(true),
		},
	}
}

// IsDeleted reports whether obj carries the deleted tombstone marker.
func (o ConnectorObject) IsDeleted() bool {
	v, ok := o.Attributes[DeletedMarkerKey]
	if !ok {
		return false
	}
	b, ok := v.(BoolValue)
	return ok && bool(b)
}

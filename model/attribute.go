package model

import (
	"encoding/json"
	"fmt"
)

// maxComplexDepth bounds recursion when walking or validating nested
// AttributeValues, mirroring the filter AST's depth cap (see filter.MaxDepth)
// so no part of the data model is exposed to unbounded recursive input.
const maxComplexDepth = 16

// AttributeValue is the closed sum type described in spec.md §3: a
// primitive, an ordered sequence of primitives, a nested complex object, or
// an ordered sequence of complex objects. It is implemented only by the
// types in this file; callers switch on the concrete type rather than a
// discriminator field.
type AttributeValue interface {
	isAttributeValue()
}

// StringValue is a primitive string.
type StringValue string

// IntValue is a primitive integer.
type IntValue int64

// BoolValue is a primitive boolean.
type BoolValue bool

// NullValue represents the primitive null.
type NullValue struct{}

// ListValue is an ordered sequence of primitives (StringValue, IntValue,
// BoolValue, or NullValue). It may not contain ListValue, ComplexValue, or
// ComplexListValue elements.
type ListValue []AttributeValue

// ComplexValue is a nested object, name -> AttributeValue. It may nest
// recursively up to maxComplexDepth.
type ComplexValue map[string]AttributeValue

// ComplexListValue is an ordered sequence of ComplexValue.
type ComplexListValue []ComplexValue

func (StringValue) isAttributeValue()      {}
func (IntValue) isAttributeValue()         {}
func (BoolValue) isAttributeValue()        {}
func (NullValue) isAttributeValue()        {}
func (ListValue) isAttributeValue()        {}
func (ComplexValue) isAttributeValue()     {}
func (ComplexListValue) isAttributeValue() {}

// ValidateDepth reports an error if v nests deeper than maxComplexDepth,
// guarding against stack exhaustion from hostile input the same way the
// filter AST's parser does.
func ValidateDepth(v AttributeValue) error {
	return validateDepth(v, 0)
}

func validateDepth(v AttributeValue, depth int) error {
	if depth > maxComplexDepth {
		return fmt.Errorf("attribute value nests deeper than %d levels", maxComplexDepth)
	}
	switch t := v.(type) {
	case ComplexValue:
		for k, sub := range t {
			if err := validateDepth(sub, depth+1); err != nil {
				return fmt.Errorf("attribute %q: %w", k, err)
			}
		}
	case ComplexListValue:
		for i, sub := range t {
			if err := validateDepth(sub, depth+1); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

// marshalAttributeValue renders the attribute value as plain JSON (string, number,
// bool, null, array, or object) rather than a tagged union, since that is
// the wire shape spec.md §6 expects for ConnectorObject attributes.
func marshalAttributeValue(v AttributeValue) (any, error) {
	switch t := v.(type) {
	case StringValue:
		return string(t), nil
	case IntValue:
		return int64(t), nil
	case BoolValue:
		return bool(t), nil
	case NullValue:
		return nil, nil
	case ListValue:
		out := make([]any, len(t))
		for i, e := range t {
			raw, err := marshalAttributeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
		return out, nil
	case ComplexValue:
		out := make(map[string]any, len(t))
		for k, e := range t {
			raw, err := marshalAttributeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = raw
		}
		return out, nil
	case ComplexListValue:
		out := make([]any, len(t))
		for i, e := range t {
			raw, err := marshalAttributeValue(ComplexValue(e))
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type %T", v)
	}
}

// AttributesToJSON converts an attribute map into a plain JSON-ready map,
// used when building wire responses (schema, get, create, update results).
func AttributesToJSON(attrs map[string]AttributeValue) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		raw, err := marshalAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// FromJSON converts a decoded JSON value (string/float64/bool/nil/[]any/map[string]any,
// the shapes encoding/json produces into any) into an AttributeValue tree.
func FromJSON(raw any) (AttributeValue, error) {
	return fromJSON(raw, 0)
}

func fromJSON(raw any, depth int) (AttributeValue, error) {
	if depth > maxComplexDepth {
		return nil, fmt.Errorf("value nests deeper than %d levels", maxComplexDepth)
	}
	switch t := raw.(type) {
	case nil:
		return NullValue{}, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return IntValue(int64(t)), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", t.String())
		}
		return IntValue(i), nil
	case []any:
		if len(t) == 0 {
			return ListValue{}, nil
		}
		if _, isObj := t[0].(map[string]any); isObj {
			out := make(ComplexListValue, 0, len(t))
			for i, e := range t {
				m, ok := e.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("element %d: mixed primitive/object list", i)
				}
				cv, err := fromJSON(m, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, cv.(ComplexValue))
			}
			return out, nil
		}
		out := make(ListValue, 0, len(t))
		for i, e := range t {
			v, err := fromJSON(e, depth+1)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			switch v.(type) {
			case ListValue, ComplexValue, ComplexListValue:
				return nil, fmt.Errorf("element %d: list of primitives may not contain a list or object", i)
			}
			out = append(out, v)
		}
		return out, nil
	case map[string]any:
		out := make(ComplexValue, len(t))
		for k, e := range t {
			v, err := fromJSON(e, depth+1)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type %T", raw)
	}
}

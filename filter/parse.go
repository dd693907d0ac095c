package filter

import (
	"fmt"

	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/model"
)

// Parse validates an untrusted decoded-JSON payload (the shape produced by
// encoding/json.Unmarshal into map[string]any) against the Filter AST rules
// in spec.md §4.1 and builds a Node tree. Any unknown tag, unknown operator,
// out-of-bound path/value, or over-deep tree fails with a ValidationFailed
// connerr.Error.
func Parse(raw any) (*Node, error) {
	n, err := parse(raw, 0)
	if err != nil {
		return nil, connerr.Wrap(connerr.KindValidationFailed, "invalid filter", err)
	}
	return n, nil
}

func parse(raw any, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("filter nests deeper than %d boolean combinators", MaxDepth)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter node must be a JSON object")
	}
	rawType, ok := m["type"].(string)
	if !ok || rawType == "" {
		return nil, fmt.Errorf("filter node missing \"type\"")
	}

	switch NodeKind(rawType) {
	case KindCmp:
		return parseCmp(m)
	case KindAnd:
		children, err := parseChildren(m, depth)
		if err != nil {
			return nil, fmt.Errorf("AND: %w", err)
		}
		return And(children...), nil
	case KindOr:
		children, err := parseChildren(m, depth)
		if err != nil {
			return nil, fmt.Errorf("OR: %w", err)
		}
		return Or(children...), nil
	case KindNot:
		rawChild, ok := m["node"]
		if !ok {
			return nil, fmt.Errorf("NOT requires \"node\"")
		}
		child, err := parse(rawChild, depth+1)
		if err != nil {
			return nil, fmt.Errorf("NOT: %w", err)
		}
		return Not(child), nil
	default:
		return nil, fmt.Errorf("unknown filter tag %q", rawType)
	}
}

func parseChildren(m map[string]any, depth int) ([]*Node, error) {
	rawNodes, ok := m["nodes"].([]any)
	if !ok {
		return nil, fmt.Errorf("requires \"nodes\" array")
	}
	if len(rawNodes) < 1 || len(rawNodes) > MaxBooleanChildren {
		return nil, fmt.Errorf("must have between 1 and %d children", MaxBooleanChildren)
	}
	children := make([]*Node, 0, len(rawNodes))
	for i, rn := range rawNodes {
		child, err := parse(rn, depth+1)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, child)
	}
	return children, nil
}

func parseCmp(m map[string]any) (*Node, error) {
	rawOp, ok := m["op"].(string)
	if !ok || rawOp == "" {
		return nil, fmt.Errorf("CMP missing \"op\"")
	}
	op := Op(rawOp)
	switch op {
	case OpEQ, OpContains, OpStartsWith, OpEndsWith, OpGT, OpGTE, OpLT, OpLTE, OpIN, OpExists:
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", rawOp)
	}

	path, err := parsePath(m["path"])
	if err != nil {
		return nil, err
	}

	rawValue, hasValue := m["value"]

	if op == OpExists {
		if hasValue {
			return nil, fmt.Errorf("EXISTS must not carry a value")
		}
		return Exists(path), nil
	}
	if !hasValue {
		return nil, fmt.Errorf("%s requires a value", op)
	}

	if op == OpIN {
		rawArr, ok := rawValue.([]any)
		if !ok {
			return nil, fmt.Errorf("IN requires an array value")
		}
		if len(rawArr) < 1 || len(rawArr) > MaxINValues {
			return nil, fmt.Errorf("IN array must have between 1 and %d values", MaxINValues)
		}
		values := make([]model.AttributeValue, 0, len(rawArr))
		for i, rv := range rawArr {
			v, err := parsePrimitive(rv)
			if err != nil {
				return nil, fmt.Errorf("IN value %d: %w", i, err)
			}
			values = append(values, v)
		}
		return In(path, values), nil
	}

	v, err := parsePrimitive(rawValue)
	if err != nil {
		return nil, err
	}
	return Cmp(op, path, v), nil
}

func parsePath(raw any) ([]string, error) {
	rawArr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("path must be an array of 1 to %d segments", MaxPathSegments)
	}
	if len(rawArr) < 1 || len(rawArr) > MaxPathSegments {
		return nil, fmt.Errorf("path must have between 1 and %d segments", MaxPathSegments)
	}
	path := make([]string, 0, len(rawArr))
	for i, rs := range rawArr {
		s, ok := rs.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("path segment %d must be a non-empty string", i)
		}
		if len(s) > MaxSegmentLen {
			return nil, fmt.Errorf("path segment %d exceeds %d characters", i, MaxSegmentLen)
		}
		path = append(path, s)
	}
	return path, nil
}

func parsePrimitive(raw any) (model.AttributeValue, error) {
	switch t := raw.(type) {
	case string:
		return model.StringValue(t), nil
	case bool:
		return model.BoolValue(t), nil
	case float64:
		return model.IntValue(int64(t)), nil
	case nil:
		return nil, fmt.Errorf("value must not be null")
	default:
		return nil, fmt.Errorf("unsupported value type %T; must be a primitive", raw)
	}
}

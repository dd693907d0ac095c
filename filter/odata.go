package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/model"
)

// TranslateOData renders a validated Filter AST as an OData-style query
// string, per spec.md §4.1. allowedPaths restricts which single-segment
// paths may appear; nested paths (len(path) > 1) are always rejected since
// OData-style query languages address fields by name, not by dotted path.
func TranslateOData(n *Node, allowedPaths map[string]struct{}) (string, error) {
	s, err := translateODataNode(n, allowedPaths)
	if err != nil {
		return "", connerr.Wrap(connerr.KindValidationFailed, "odata translation failed", err)
	}
	return s, nil
}

func translateODataNode(n *Node, allowed map[string]struct{}) (string, error) {
	switch n.Kind {
	case KindCmp:
		return translateODataCmp(n, allowed)
	case KindAnd:
		return translateODataBoolean(n.Children, "and", allowed)
	case KindOr:
		return translateODataBoolean(n.Children, "or", allowed)
	case KindNot:
		inner, err := translateODataNode(n.Child, allowed)
		if err != nil {
			return "", err
		}
		return "(not " + inner + ")", nil
	default:
		return "", fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func translateODataBoolean(children []*Node, joiner string, allowed map[string]struct{}) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := translateODataNode(c, allowed)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+joiner+" ") + ")", nil
}

func translateODataCmp(n *Node, allowed map[string]struct{}) (string, error) {
	if len(n.Path) > 1 {
		return "", fmt.Errorf("nested path %v not supported by the query-string translator", n.Path)
	}
	field := n.Path[0]
	if _, ok := allowed[field]; !ok {
		return "", fmt.Errorf("path %q is not in the allowed-paths set for this call", field)
	}

	if n.CmpOp == OpExists {
		return fmt.Sprintf("(%s ne null)", field), nil
	}
	if n.CmpOp == OpIN {
		parts := make([]string, 0, len(n.Values))
		for _, v := range n.Values {
			lit, err := odataLiteral(v)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s eq %s", field, lit))
		}
		return "(" + strings.Join(parts, " or ") + ")", nil
	}

	lit, err := odataLiteral(n.Value)
	if err != nil {
		return "", err
	}

	switch n.CmpOp {
	case OpEQ:
		return fmt.Sprintf("%s eq %s", field, lit), nil
	case OpGT:
		return fmt.Sprintf("%s gt %s", field, lit), nil
	case OpGTE:
		return fmt.Sprintf("%s ge %s", field, lit), nil
	case OpLT:
		return fmt.Sprintf("%s lt %s", field, lit), nil
	case OpLTE:
		return fmt.Sprintf("%s le %s", field, lit), nil
	case OpContains:
		return fmt.Sprintf("contains(%s, %s)", field, lit), nil
	case OpStartsWith:
		return fmt.Sprintf("startswith(%s, %s)", field, lit), nil
	case OpEndsWith:
		return fmt.Sprintf("endswith(%s, %s)", field, lit), nil
	default:
		return "", fmt.Errorf("unsupported operator %q for query-string translation", n.CmpOp)
	}
}

// odataLiteral renders a primitive AttributeValue as an OData literal,
// single-quoting strings and doubling any embedded single quote so no
// user-supplied text can break out of the literal (spec.md §8 property 3).
func odataLiteral(v model.AttributeValue) (string, error) {
	switch t := v.(type) {
	case model.StringValue:
		escaped := strings.ReplaceAll(string(t), "'", "''")
		return "'" + escaped + "'", nil
	case model.BoolValue:
		return strconv.FormatBool(bool(t)), nil
	case model.IntValue:
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

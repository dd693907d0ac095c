package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/model"
)

// columnIdentRe is the safety regex spec.md §4.1 requires: a quoted column
// identifier made only of ASCII letters, digits, and underscore.
var columnIdentRe = regexp.MustCompile(`^"[A-Za-z0-9_]+"$`)

// SQLResult is the output of TranslateSQL: the generated boolean expression,
// its positional parameters in order, and the next free placeholder index
// (for callers composing several translated fragments into one statement).
type SQLResult struct {
	SQL       string
	Params    []any
	NextIndex int
}

// TranslateSQL renders a validated Filter AST as a parameterized SQL boolean
// expression, per spec.md §4.1. columns maps each dotted path (joined with
// ".") to a pre-quoted, pre-validated column identifier; startIndex is the
// first placeholder number to use ($N, 1-based as Postgres expects).
func TranslateSQL(n *Node, columns map[string]string, startIndex int) (SQLResult, error) {
	tr := &sqlTranslator{columns: columns, next: startIndex}
	sql, err := tr.node(n)
	if err != nil {
		return SQLResult{}, connerr.Wrap(connerr.KindValidationFailed, "sql translation failed", err)
	}
	return SQLResult{SQL: sql, Params: tr.params, NextIndex: tr.next}, nil
}

type sqlTranslator struct {
	columns map[string]string
	params  []any
	next    int
}

func (t *sqlTranslator) column(path []string) (string, error) {
	key := strings.Join(path, ".")
	col, ok := t.columns[key]
	if !ok {
		return "", fmt.Errorf("path %q is not in the column map for this call", key)
	}
	if !columnIdentRe.MatchString(col) {
		return "", fmt.Errorf("column %q for path %q fails the identifier safety check", col, key)
	}
	return col, nil
}

func (t *sqlTranslator) placeholder(v any) string {
	ph := fmt.Sprintf("$%d", t.next)
	t.next++
	t.params = append(t.params, v)
	return ph
}

func (t *sqlTranslator) node(n *Node) (string, error) {
	switch n.Kind {
	case KindCmp:
		return t.cmp(n)
	case KindAnd:
		return t.boolean(n.Children, "AND")
	case KindOr:
		return t.boolean(n.Children, "OR")
	case KindNot:
		inner, err := t.node(n.Child)
		if err != nil {
			return "", err
		}
		return "(NOT " + inner + ")", nil
	default:
		return "", fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func (t *sqlTranslator) boolean(children []*Node, joiner string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := t.node(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " "+joiner+" ") + ")", nil
}

func (t *sqlTranslator) cmp(n *Node) (string, error) {
	col, err := t.column(n.Path)
	if err != nil {
		return "", err
	}

	if n.CmpOp == OpExists {
		return fmt.Sprintf("%s IS NOT NULL", col), nil
	}

	if n.CmpOp == OpIN {
		raw, err := primitivesToGo(n.Values)
		if err != nil {
			return "", err
		}
		ph := t.placeholder(raw)
		return fmt.Sprintf("%s = ANY(array[%s])", col, ph), nil
	}

	val, err := primitiveToGo(n.Value)
	if err != nil {
		return "", err
	}

	switch n.CmpOp {
	case OpEQ:
		return fmt.Sprintf("%s = %s", col, t.placeholder(val)), nil
	case OpGT:
		return fmt.Sprintf("%s > %s", col, t.placeholder(val)), nil
	case OpGTE:
		return fmt.Sprintf("%s >= %s", col, t.placeholder(val)), nil
	case OpLT:
		return fmt.Sprintf("%s < %s", col, t.placeholder(val)), nil
	case OpLTE:
		return fmt.Sprintf("%s <= %s", col, t.placeholder(val)), nil
	case OpContains:
		return fmt.Sprintf("%s LIKE %s", col, t.placeholder(likeWrap(val, "%", "%"))), nil
	case OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", col, t.placeholder(likeWrap(val, "", "%"))), nil
	case OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", col, t.placeholder(likeWrap(val, "%", ""))), nil
	default:
		return "", fmt.Errorf("unsupported operator %q for SQL translation", n.CmpOp)
	}
}

// likeWrap wraps v's string form with the given LIKE wildcards (spec.md
// §4.1: "% wrapping on the value").
func likeWrap(v any, prefix, suffix string) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	return prefix + s + suffix
}

func primitiveToGo(v model.AttributeValue) (any, error) {
	switch t := v.(type) {
	case model.StringValue:
		return string(t), nil
	case model.IntValue:
		return int64(t), nil
	case model.BoolValue:
		return bool(t), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func primitivesToGo(vs []model.AttributeValue) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		g, err := primitiveToGo(v)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

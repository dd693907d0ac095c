package filter

import (
	"fmt"
	"strconv"
	"strings"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/model"
)

// TranslateLDAP renders a validated Filter AST as an RFC 4515 LDAP filter
// string. This is the supplemental translator SPEC_FULL.md §4.1 adds so the
// pack's go-ldap/v3 dependency (dexidp-dex connector/ldap) is exercised by
// the filter package, not just a REST- and SQL-backed translator. attrMap
// maps each dotted path to the LDAP attribute name to query.
func TranslateLDAP(n *Node, attrMap map[string]string) (string, error) {
	s, err := translateLDAPNode(n, attrMap)
	if err != nil {
		return "", connerr.Wrap(connerr.KindValidationFailed, "ldap translation failed", err)
	}
	return s, nil
}

func translateLDAPNode(n *Node, attrMap map[string]string) (string, error) {
	switch n.Kind {
	case KindCmp:
		return translateLDAPCmp(n, attrMap)
	case KindAnd:
		return wrapLDAPBoolean(n.Children, "&", attrMap)
	case KindOr:
		return wrapLDAPBoolean(n.Children, "|", attrMap)
	case KindNot:
		inner, err := translateLDAPNode(n.Child, attrMap)
		if err != nil {
			return "", err
		}
		return "(!" + inner + ")", nil
	default:
		return "", fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func wrapLDAPBoolean(children []*Node, op string, attrMap map[string]string) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(op)
	for _, c := range children {
		s, err := translateLDAPNode(c, attrMap)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(')')
	return b.String(), nil
}

func translateLDAPCmp(n *Node, attrMap map[string]string) (string, error) {
	if len(n.Path) > 1 {
		return "", fmt.Errorf("nested path %v not supported by the LDAP translator", n.Path)
	}
	attr, ok := attrMap[n.Path[0]]
	if !ok {
		return "", fmt.Errorf("path %q is not in the attribute map for this call", n.Path[0])
	}

	if n.CmpOp == OpExists {
		return fmt.Sprintf("(%s=*)", attr), nil
	}

	if n.CmpOp == OpIN {
		parts := make([]string, 0, len(n.Values))
		for _, v := range n.Values {
			lit, err := ldapLiteral(v)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("(%s=%s)", attr, lit))
		}
		return "(|" + strings.Join(parts, "") + ")", nil
	}

	lit, err := ldapLiteral(n.Value)
	if err != nil {
		return "", err
	}

	switch n.CmpOp {
	case OpEQ:
		return fmt.Sprintf("(%s=%s)", attr, lit), nil
	case OpContains:
		return fmt.Sprintf("(%s=*%s*)", attr, lit), nil
	case OpStartsWith:
		return fmt.Sprintf("(%s=%s*)", attr, lit), nil
	case OpEndsWith:
		return fmt.Sprintf("(%s=*%s)", attr, lit), nil
	case OpGTE:
		return fmt.Sprintf("(%s>=%s)", attr, lit), nil
	case OpLTE:
		return fmt.Sprintf("(%s<=%s)", attr, lit), nil
	case OpGT, OpLT:
		// RFC 4515 has no strict > or < operator; approximate with the
		// inclusive form ANDed with a NOT of the equality test.
		if n.CmpOp == OpGT {
			return fmt.Sprintf("(&(%s>=%s)(!(%s=%s)))", attr, lit, attr, lit), nil
		}
		return fmt.Sprintf("(&(%s<=%s)(!(%s=%s)))", attr, lit, attr, lit), nil
	default:
		return "", fmt.Errorf("unsupported operator %q for LDAP translation", n.CmpOp)
	}
}

// ldapLiteral renders a primitive as an RFC 4515 filter value, escaping
// reserved characters with go-ldap/v3's EscapeFilter so no user-supplied
// text can inject filter syntax.
func ldapLiteral(v model.AttributeValue) (string, error) {
	switch t := v.(type) {
	case model.StringValue:
		return ldap.EscapeFilter(string(t)), nil
	case model.BoolValue:
		if bool(t) {
			return "TRUE", nil
		}
		return "FALSE", nil
	case model.IntValue:
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

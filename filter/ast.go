// Package filter implements the Filter AST described in spec.md §3/§4.1: a
// tagged predicate tree parsed from untrusted input, validated against
// strict shape rules, and translated to backend-specific query dialects.
package filter

import "github.com/srallapally/openicf-connector-service/model"

// Op enumerates CMP node operators.
type Op string

const (
	OpEQ         Op = "EQ"
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS_WITH"
	OpEndsWith   Op = "ENDS_WITH"
	OpGT         Op = "GT"
	OpGTE        Op = "GTE"
	OpLT         Op = "LT"
	OpLTE        Op = "LTE"
	OpIN         Op = "IN"
	OpExists     Op = "EXISTS"
)

// Bounds from spec.md §3/§4.1.
const (
	MaxPathSegments  = 8
	MaxSegmentLen    = 128
	MaxINValues      = 100
	MaxBooleanChildren = 50
	MaxDepth         = 50
)

// NodeKind discriminates the Filter tree tag.
type NodeKind string

const (
	KindCmp NodeKind = "CMP"
	KindAnd NodeKind = "AND"
	KindOr  NodeKind = "OR"
	KindNot NodeKind = "NOT"
)

// Node is the Filter AST. Exactly one of the kind-specific fields is
// populated, matching Kind.
type Node struct {
	Kind NodeKind

	// CMP fields.
	CmpOp Op
	Path  []string
	Value model.AttributeValue // nil for OpExists and OpIN
	Values []model.AttributeValue // populated iff CmpOp == OpIN

	// AND/OR fields.
	Children []*Node

	// NOT field.
	Child *Node
}

// Cmp builds a comparison node for single-value operators.
func Cmp(op Op, path []string, value model.AttributeValue) *Node {
	return &Node{Kind: KindCmp, CmpOp: op, Path: path, Value: value}
}

// In builds an IN comparison node.
func In(path []string, values []model.AttributeValue) *Node {
	return &Node{Kind: KindCmp, CmpOp: OpIN, Path: path, Values: values}
}

// Exists builds an EXISTS comparison node.
func Exists(path []string) *Node {
	return &Node{Kind: KindCmp, CmpOp: OpExists, Path: path}
}

// And builds a boolean AND node.
func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }

// Or builds a boolean OR node.
func Or(children ...*Node) *Node { return &Node{Kind: KindOr, Children: children} }

// Not builds a negation node.
func Not(child *Node) *Node { return &Node{Kind: KindNot, Child: child} }

package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCmpEQ(t *testing.T) {
	n, err := Parse(map[string]any{
		"type":  "CMP",
		"op":    "EQ",
		"path":  []any{"name"},
		"value": "alice",
	})
	require.NoError(t, err)
	require.Equal(t, KindCmp, n.Kind)
	require.Equal(t, OpEQ, n.CmpOp)
}

func TestParseAndOr(t *testing.T) {
	raw := map[string]any{
		"type": "AND",
		"nodes": []any{
			map[string]any{"type": "CMP", "op": "EQ", "path": []any{"name"}, "value": "alice"},
			map[string]any{"type": "OR", "nodes": []any{
				map[string]any{"type": "CMP", "op": "EXISTS", "path": []any{"email"}},
			}},
		},
	}
	n, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, KindAnd, n.Kind)
	require.Len(t, n.Children, 2)
}

func TestParseRejectsUnknownTag(t *testing.T) {
	_, err := Parse(map[string]any{"type": "XOR"})
	require.Error(t, err)
}

func TestParseRejectsOversizedBooleanChildren(t *testing.T) {
	nodes := make([]any, MaxBooleanChildren+1)
	for i := range nodes {
		nodes[i] = map[string]any{"type": "CMP", "op": "EXISTS", "path": []any{"name"}}
	}
	_, err := Parse(map[string]any{"type": "AND", "nodes": nodes})
	require.Error(t, err)
}

func TestParseRejectsOverlongPath(t *testing.T) {
	path := make([]any, MaxPathSegments+1)
	for i := range path {
		path[i] = "seg"
	}
	_, err := Parse(map[string]any{"type": "CMP", "op": "EXISTS", "path": path})
	require.Error(t, err)
}

func TestParseExistsRejectsValue(t *testing.T) {
	_, err := Parse(map[string]any{"type": "CMP", "op": "EXISTS", "path": []any{"name"}, "value": "x"})
	require.Error(t, err)
}

func TestParseDeepNotExceedsMaxDepth(t *testing.T) {
	var raw any = map[string]any{"type": "CMP", "op": "EXISTS", "path": []any{"name"}}
	for i := 0; i < MaxDepth+5; i++ {
		raw = map[string]any{"type": "NOT", "node": raw}
	}
	_, err := Parse(raw)
	require.Error(t, err)
}

func TestParseINBounds(t *testing.T) {
	values := make([]any, MaxINValues+1)
	for i := range values {
		values[i] = "v"
	}
	_, err := Parse(map[string]any{"type": "CMP", "op": "IN", "path": []any{"name"}, "value": values})
	require.Error(t, err)
}

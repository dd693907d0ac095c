package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromJSONPrimitives(t *testing.T) {
	v, err := FromJSON("hello")
	require.NoError(t, err)
	require.Equal(t, StringValue("hello"), v)

	v, err = FromJSON(float64(42))
	require.NoError(t, err)
	require.Equal(t, IntValue(42), v)

	v, err = FromJSON(nil)
	require.NoError(t, err)
	require.Equal(t, NullValue{}, v)
}

func TestFromJSONListVsComplexList(t *testing.T) {
	v, err := FromJSON([]any{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, ListValue{StringValue("a"), StringValue("b")}, v)

	v, err = FromJSON([]any{map[string]any{"x": "y"}})
	require.NoError(t, err)
	cl, ok := v.(ComplexListValue)
	require.True(t, ok)
	require.Equal(t, StringValue("y"), cl[0]["x"])
}

func TestFromJSONRejectsMixedList(t *testing.T) {
	_, err := FromJSON([]any{map[string]any{"x": "y"}, "oops"})
	require.Error(t, err)
}

func TestFromJSONRejectsExcessiveDepth(t *testing.T) {
	var raw any = "leaf"
	for i := 0; i < maxComplexDepth+5; i++ {
		raw = map[string]any{"child": raw}
	}
	_, err := FromJSON(raw)
	require.Error(t, err)
}

func TestValidateDepthRejectsDeepComplexValue(t *testing.T) {
	var v AttributeValue = StringValue("leaf")
	for i := 0; i < maxComplexDepth+5; i++ {
		v = ComplexValue{"child": v}
	}
	require.Error(t, ValidateDepth(v))
}

func TestAttributesToJSONConvertsPrimitives(t *testing.T) {
	attrs := map[string]AttributeValue{
		"name":   StringValue("alice"),
		"age":    IntValue(30),
		"active": BoolValue(true),
		"groups": ListValue{StringValue("eng")},
	}
	out, err := AttributesToJSON(attrs)
	require.NoError(t, err)
	require.Equal(t, "alice", out["name"])
	require.Equal(t, int64(30), out["age"])
	require.Equal(t, true, out["active"])
}

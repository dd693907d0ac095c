package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/model"
)

func TestTranslateODataEscapesQuotes(t *testing.T) {
	n := Cmp(OpEQ, []string{"name"}, model.StringValue("o'brien"))
	s, err := TranslateOData(n, map[string]struct{}{"name": {}})
	require.NoError(t, err)
	require.Equal(t, "name eq 'o''brien'", s)
}

func TestTranslateODataRejectsDisallowedPath(t *testing.T) {
	n := Cmp(OpEQ, []string{"ssn"}, model.StringValue("x"))
	_, err := TranslateOData(n, map[string]struct{}{"name": {}})
	require.Error(t, err)
}

func TestTranslateODataRejectsNestedPath(t *testing.T) {
	n := Cmp(OpEQ, []string{"address", "city"}, model.StringValue("x"))
	_, err := TranslateOData(n, map[string]struct{}{"address": {}})
	require.Error(t, err)
}

func TestTranslateODataBooleanAndNot(t *testing.T) {
	n := And(
		Cmp(OpEQ, []string{"name"}, model.StringValue("a")),
		Not(Exists([]string{"email"})),
	)
	s, err := TranslateOData(n, map[string]struct{}{"name": {}, "email": {}})
	require.NoError(t, err)
	require.Equal(t, "(name eq 'a' and (not (email ne null)))", s)
}

package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/model"
)

func columns() map[string]string {
	return map[string]string{"name": `"name"`, "email": `"email"`}
}

func TestTranslateSQLEQ(t *testing.T) {
	n := Cmp(OpEQ, []string{"name"}, model.StringValue("alice"))
	r, err := TranslateSQL(n, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, `"name" = $1`, r.SQL)
	require.Equal(t, []any{"alice"}, r.Params)
	require.Equal(t, 2, r.NextIndex)
}

func TestTranslateSQLContainsWrapsLike(t *testing.T) {
	n := Cmp(OpContains, []string{"name"}, model.StringValue("ali"))
	r, err := TranslateSQL(n, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, `"name" LIKE $1`, r.SQL)
	require.Equal(t, []any{"%ali%"}, r.Params)
}

func TestTranslateSQLStartsEndsWith(t *testing.T) {
	n1 := Cmp(OpStartsWith, []string{"name"}, model.StringValue("al"))
	r1, err := TranslateSQL(n1, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, []any{"al%"}, r1.Params)

	n2 := Cmp(OpEndsWith, []string{"name"}, model.StringValue("ce"))
	r2, err := TranslateSQL(n2, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, []any{"%ce"}, r2.Params)
}

func TestTranslateSQLRejectsUnknownColumn(t *testing.T) {
	n := Cmp(OpEQ, []string{"ssn"}, model.StringValue("x"))
	_, err := TranslateSQL(n, columns(), 1)
	require.Error(t, err)
}

func TestTranslateSQLInUsesArrayAny(t *testing.T) {
	n := In([]string{"name"}, []model.AttributeValue{model.StringValue("a"), model.StringValue("b")})
	r, err := TranslateSQL(n, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, `"name" = ANY(array[$1])`, r.SQL)
	require.Equal(t, []any{[]any{"a", "b"}}, r.Params)
}

func TestTranslateSQLPlaceholdersIncrementAcrossChildren(t *testing.T) {
	n := And(
		Cmp(OpEQ, []string{"name"}, model.StringValue("a")),
		Cmp(OpEQ, []string{"email"}, model.StringValue("b")),
	)
	r, err := TranslateSQL(n, columns(), 1)
	require.NoError(t, err)
	require.Equal(t, `("name" = $1 AND "email" = $2)`, r.SQL)
	require.Equal(t, 3, r.NextIndex)
}

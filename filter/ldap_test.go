package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/model"
)

func attrMap() map[string]string { return map[string]string{"name": "cn", "email": "mail"} }

func TestTranslateLDAPEQ(t *testing.T) {
	n := Cmp(OpEQ, []string{"name"}, model.StringValue("alice"))
	s, err := TranslateLDAP(n, attrMap())
	require.NoError(t, err)
	require.Equal(t, "(cn=alice)", s)
}

func TestTranslateLDAPEscapesReservedChars(t *testing.T) {
	n := Cmp(OpEQ, []string{"name"}, model.StringValue("a*(b)"))
	s, err := TranslateLDAP(n, attrMap())
	require.NoError(t, err)
	require.Equal(t, `(cn=a\2a\28b\29)`, s)
}

func TestTranslateLDAPAndOrNot(t *testing.T) {
	n := And(
		Cmp(OpEQ, []string{"name"}, model.StringValue("a")),
		Not(Exists([]string{"email"})),
	)
	s, err := TranslateLDAP(n, attrMap())
	require.NoError(t, err)
	require.Equal(t, "(&(cn=a)(!(mail=*)))", s)
}

func TestTranslateLDAPGTApproximation(t *testing.T) {
	n := Cmp(OpGT, []string{"name"}, model.StringValue("m"))
	s, err := TranslateLDAP(n, attrMap())
	require.NoError(t, err)
	require.Equal(t, "(&(cn>=m)(!(cn=m)))", s)
}

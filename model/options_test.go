package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionsValidatePageSizeBounds(t *testing.T) {
	require.NoError(t, Options{}.Validate())
	require.NoError(t, Options{PageSize: 1}.Validate())
	require.Error(t, Options{PageSize: -1}.Validate())
	require.Error(t, Options{PageSize: maxPageSize + 1}.Validate())
}

func TestOptionsValidateScope(t *testing.T) {
	require.NoError(t, Options{Scope: ScopeSubtree}.Validate())
	require.Error(t, Options{Scope: "BOGUS"}.Validate())
}

func TestOptionsValidateSortKeysBound(t *testing.T) {
	keys := make([]SortKey, maxSortKeys+1)
	require.Error(t, Options{SortKeys: keys}.Validate())
}

func TestSortedAttributesToGetDedupesAndSorts(t *testing.T) {
	opts := Options{AttributesToGet: []string{"b", "a", "b", "c"}}
	require.Equal(t, []string{"a", "b", "c"}, opts.SortedAttributesToGet())
}

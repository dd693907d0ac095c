package model

import "fmt"

// Scope enumerates OperationOptions.Scope values.
type Scope string

const (
	ScopeObject   Scope = "OBJECT"
	ScopeOneLevel Scope = "ONE_LEVEL"
	ScopeSubtree  Scope = "SUBTREE"
)

// TotalPagedResultsPolicy enumerates OperationOptions.TotalPagedResultsPolicy.
type TotalPagedResultsPolicy string

const (
	PolicyNone     TotalPagedResultsPolicy = "NONE"
	PolicyEstimate TotalPagedResultsPolicy = "ESTIMATE"
	PolicyExact    TotalPagedResultsPolicy = "EXACT"
)

// SortOrder enumerates the convenience sort-direction option.
type SortOrder string

const (
	SortAscending  SortOrder = "ASC"
	SortDescending SortOrder = "DESC"
)

// SortKey is one entry of OperationOptions.SortKeys.
type SortKey struct {
	Field     string    `json:"field"`
	Ascending bool      `json:"ascending"`
}

// Container identifies a parent object for scoped search, per spec.md §3.
type Container struct {
	ObjectClass string `json:"objectClass"`
	UID         string `json:"uid"`
}

const (
	maxPageSize  = 500
	maxSortKeys  = 5
	minTimeoutMs = 100
	maxTimeoutMs = 120000
)

// Options is the uniform operation option bag (spec.md §3's OperationOptions).
// All fields are optional; zero values mean "not set" except where a
// pointer/bool distinguishes "unset" from "false"/"0".
type Options struct {
	AttributesToGet []string `json:"attributesToGet,omitempty"`

	PageSize           int    `json:"pageSize,omitempty"`
	PagedResultsOffset int    `json:"pagedResultsOffset,omitempty"`
	PagedResultsCookie string `json:"pagedResultsCookie,omitempty"`

	SortKeys  []SortKey `json:"sortKeys,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`

	Container *Container `json:"container,omitempty"`
	Scope     Scope      `json:"scope,omitempty"`

	TotalPagedResultsPolicy TotalPagedResultsPolicy `json:"totalPagedResultsPolicy,omitempty"`

	RunAsUser       string `json:"runAsUser,omitempty"`
	RunWithPassword string `json:"runWithPassword,omitempty"`
	RequireSerial   bool   `json:"requireSerial,omitempty"`
	FailOnError     bool   `json:"failOnError,omitempty"`
	TimeoutMs       int    `json:"timeoutMs,omitempty"`
}

// Validate enforces the bounds spec.md §3 places on OperationOptions.
func (o Options) Validate() error {
	if o.PageSize != 0 && (o.PageSize < 1 || o.PageSize > maxPageSize) {
		return fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
	}
	if o.PagedResultsOffset < 0 {
		return fmt.Errorf("pagedResultsOffset must be >= 0")
	}
	if len(o.SortKeys) > maxSortKeys {
		return fmt.Errorf("sortKeys accepts at most %d entries", maxSortKeys)
	}
	if o.Scope != "" && o.Scope != ScopeObject && o.Scope != ScopeOneLevel && o.Scope != ScopeSubtree {
		return fmt.Errorf("invalid scope %q", o.Scope)
	}
	switch o.TotalPagedResultsPolicy {
	case "", PolicyNone, PolicyEstimate, PolicyExact:
	default:
		return fmt.Errorf("invalid totalPagedResultsPolicy %q", o.TotalPagedResultsPolicy)
	}
	if o.TimeoutMs != 0 && (o.TimeoutMs < minTimeoutMs || o.TimeoutMs > maxTimeoutMs) {
		return fmt.Errorf("timeoutMs must be between %d and %d", minTimeoutMs, maxTimeoutMs)
	}
	return nil
}

// SortedAttributesToGet returns a deduplicated, sorted copy of
// AttributesToGet, used as the canonical cache-key component per spec.md §4.3.
func (o Options) SortedAttributesToGet() []string {
	return sortedUnique(o.AttributesToGet)
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	// simple insertion sort; option lists are tiny (<=a few dozen entries)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// SyncToken is the opaque continuation marker spec.md §3 defines. The host
// never interprets Value; only the connector does.
type SyncToken struct {
	Value string `json:"value"`
}

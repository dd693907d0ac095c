// Package connector defines the capability-set contract a backend adapter
// implements, following dexidp-dex's connector package: a minimal base
// interface (there, Connector; here, Connector) plus a family of optional
// interfaces a concrete adapter may additionally satisfy (there,
// PasswordConnector/CallbackConnector/GroupsConnector; here, the uniform
// CRUD/search/sync/script operations from spec.md §4). This is the Go
// rendering of the source's "capability partial-type": a fixed capability
// set per factory rather than runtime introspection, per spec.md §9.
package connector

import (
	"context"
	"log/slog"

	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
)

// Connector is the mandatory base every backend adapter implements.
type Connector interface {
	// Close releases any resources (connections, file handles) the
	// connector holds. Called once when the owning instance is torn down.
	Close() error
}

// Tester is an optional capability: a cheap connectivity/credential check.
type Tester interface {
	Test(ctx context.Context) error
}

// SchemaProvider is an optional capability: describing the connector's
// object classes and feature flags.
type SchemaProvider interface {
	Schema(ctx context.Context) (model.Schema, error)
}

// Getter is an optional capability: point lookup by uid.
type Getter interface {
	Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error)
}

// Creator is an optional capability.
type Creator interface {
	Create(ctx context.Context, objectClass string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
}

// Updater is an optional capability.
type Updater interface {
	Update(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
}

// Deleter is an optional capability.
type Deleter interface {
	Delete(ctx context.Context, objectClass, uid string, opts model.Options) error
}

// AttributeValueAdder/Remover are optional capabilities for multi-valued
// attribute mutation without a full update.
type AttributeValueAdder interface {
	AddAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
}

type AttributeValueRemover interface {
	RemoveAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
}

// SearchResult is the list-mode search result from spec.md §6.
type SearchResult struct {
	Results    []model.ConnectorObject
	NextOffset *int
}

// ListSearcher is the list-mode search capability: fetch, page, return.
type ListSearcher interface {
	Search(ctx context.Context, objectClass string, f *filter.Node, opts model.Options) (SearchResult, error)
}

// Handler receives one streamed object; returning false cancels the stream
// promptly (spec.md §5).
type Handler func(model.ConnectorObject) bool

// StreamResult is the streaming-mode search result from spec.md §6.
type StreamResult struct {
	PagedResultsCookie  string
	RemainingPagedResults int
}

// StreamSearcher is the streaming-mode search capability: push results to a
// Handler as pages are fetched.
type StreamSearcher interface {
	SearchStream(ctx context.Context, objectClass string, f *filter.Node, opts model.Options, h Handler) (StreamResult, error)
}

// SyncResult is the delta-sync result from spec.md §6.
type SyncResult struct {
	Token   model.SyncToken
	Changes []model.ConnectorObject
}

// Syncer is the delta-sync capability.
type Syncer interface {
	Sync(ctx context.Context, objectClass string, token model.SyncToken, opts model.Options) (SyncResult, error)
}

// ScriptContext carries the scriptOnConnector request payload, per spec.md §6.
type ScriptContext struct {
	Language string
	Script   string
	Params   map[string]any
}

// ScriptRunner is the optional scriptOnConnector capability.
type ScriptRunner interface {
	RunScript(ctx context.Context, sc ScriptContext) (any, error)
}

// Config is the effective, post-build configuration a factory consumes. If
// it also implements Validator, the registry runs Validate before
// constructing the connector (spec.md §4.5).
type Config any

// Validator is an optional hook a Config may implement; its absence means
// "no validation required" (spec.md §7).
type Validator interface {
	Validate() error
}

// ConfigBuilder turns a raw, loader-supplied configuration value (typically
// decoded JSON, map[string]any) into the effective Config a Factory expects.
type ConfigBuilder func(raw any) (Config, error)

// FactoryContext is passed to a Factory on construction, mirroring
// dexidp-dex's ConnectorConfig.Open(id, logger) but carrying the extra
// identity fields the Registry's InitInstance assembles per spec.md §4.5.
type FactoryContext struct {
	Logger           *slog.Logger
	InstanceID       string
	ConnectorType    string
	ConnectorVersion string
	Config           Config
}

// Factory constructs a Connector from a FactoryContext.
type Factory func(ctx FactoryContext) (Connector, error)

// Instance is a configured, initialized connector living for the process
// lifetime (spec.md §3's ConnectorInstance). It is never mutated after
// construction.
type Instance struct {
	ID               string
	ConnectorType    string
	ConnectorVersion string
	Config           Config
	Impl             Connector
}

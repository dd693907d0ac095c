// Package registry implements the Connector Registry from spec.md §4.5: a
// (type, version) -> factory/configBuilder table plus an id -> instance
// table, mirroring dexidp-dex's server.ConnectorsConfig map of
// `func() ConnectorConfig` generalized to carry both a factory and an
// optional config builder, and keyed by the versioned composite
// spec.md §9 calls authoritative ("two versions of the Registry exist in
// the source ... this spec takes the versioned one").
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Masterminds/semver"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
)

// key builds the composite "type@version" string used internally.
func key(connType, version string) string {
	return connType + "@" + version
}

type registration struct {
	factory connector.Factory
	builder connector.ConfigBuilder // may be nil
}

// Registry is the process-wide table of registered connector factories and
// live instances. Safe for concurrent use: registration happens mostly at
// startup, instances are read on every operation (spec.md §5).
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]registration
	versions      map[string][]string // connType -> registered versions
	instances     map[string]*connector.Instance
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		registrations: make(map[string]registration),
		versions:      make(map[string][]string),
		instances:     make(map[string]*connector.Instance),
	}
}

// RegisterFactory registers a factory for (type, version). A second
// registration for the same pair replaces the first (hot registration is
// allowed per spec.md §5).
func (r *Registry) RegisterFactory(connType, version string, factory connector.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(connType, version)
	if _, exists := r.registrations[k]; !exists {
		r.versions[connType] = append(r.versions[connType], version)
	}
	reg := r.registrations[k]
	reg.factory = factory
	r.registrations[k] = reg
}

// RegisterConfigBuilder registers a config builder for (type, version).
func (r *Registry) RegisterConfigBuilder(connType, version string, builder connector.ConfigBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(connType, version)
	if _, exists := r.registrations[k]; !exists {
		r.versions[connType] = append(r.versions[connType], version)
	}
	reg := r.registrations[k]
	reg.builder = builder
	r.registrations[k] = reg
}

// InitInstance builds and stores a ConnectorInstance, per spec.md §4.5:
// locate the factory, run the config builder if any, run Validate if the
// effective config implements it, invoke the factory, store the result.
// log is passed to the factory via FactoryContext.Logger (spec.md §4.5's
// {logger, config, instanceId, connectorId, connectorVersion, type} factory
// invocation fields); a nil log falls back to slog.Default().
func (r *Registry) InitInstance(ctx context.Context, log *slog.Logger, id, connType, version string, rawConfig any) (*connector.Instance, error) {
	if log == nil {
		log = slog.Default()
	}
	r.mu.RLock()
	reg, ok := r.registrations[key(connType, version)]
	r.mu.RUnlock()
	if !ok || reg.factory == nil {
		return nil, connerr.Wrap(connerr.KindUnknownConnectorType,
			fmt.Sprintf("no factory registered for %s@%s", connType, version), nil)
	}

	effectiveConfig := connector.Config(rawConfig)
	if reg.builder != nil {
		built, err := reg.builder(rawConfig)
		if err != nil {
			return nil, connerr.Wrap(connerr.KindConfigInvalid, "config builder failed", err)
		}
		effectiveConfig = built
	}

	if v, ok := effectiveConfig.(connector.Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, connerr.Wrap(connerr.KindConfigInvalid,
				fmt.Sprintf("config invalid for instance %q", id), err)
		}
	}

	impl, err := reg.factory(connector.FactoryContext{
		Logger:           log,
		InstanceID:       id,
		ConnectorType:    connType,
		ConnectorVersion: version,
		Config:           effectiveConfig,
	})
	if err != nil {
		return nil, connerr.Wrap(connerr.KindConfigInvalid,
			fmt.Sprintf("factory failed for instance %q", id), err)
	}

	inst := &connector.Instance{
		ID:               id,
		ConnectorType:    connType,
		ConnectorVersion: version,
		Config:           effectiveConfig,
		Impl:             impl,
	}

	r.mu.Lock()
	r.instances[id] = inst
	r.mu.Unlock()

	_ = ctx // reserved: future factories may want cancellation during construction
	return inst, nil
}

// Register stores an already-constructed instance directly, for explicit
// hot registration outside the loader (spec.md §4.5).
func (r *Registry) Register(inst *connector.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = inst
}

// Get returns the instance with the given id, or ConnectorNotFound.
func (r *Registry) Get(id string) (*connector.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, connerr.ErrConnectorNotFound
	}
	return inst, nil
}

// Has reports whether an instance with the given id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instances[id]
	return ok
}

// Keys returns all registered "type@version" factory keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.registrations))
	for k := range r.registrations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IDs returns all registered instance ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for id := range r.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// List returns all registered instances.
func (r *Registry) List() []*connector.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*connector.Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

// GetVersions returns all versions registered for connType, semver-ascending.
func (r *Registry) GetVersions(connType string) ([]string, error) {
	r.mu.RLock()
	versions := append([]string(nil), r.versions[connType]...)
	r.mu.RUnlock()

	if len(versions) == 0 {
		return nil, fmt.Errorf("no versions registered for connector type %q", connType)
	}

	parsed := make([]*semver.Version, len(versions))
	for i, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("version %q for type %q is not valid semver: %w", v, connType, err)
		}
		parsed[i] = sv
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].LessThan(parsed[j]) })

	out := make([]string, len(parsed))
	for i, sv := range parsed {
		out[i] = sv.String()
	}
	return out, nil
}

// GetLatestVersion returns the semver-maximum registered version for connType.
func (r *Registry) GetLatestVersion(connType string) (string, error) {
	versions, err := r.GetVersions(connType)
	if err != nil {
		return "", err
	}
	return versions[len(versions)-1], nil
}

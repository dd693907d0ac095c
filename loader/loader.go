// Package loader implements the External Loader from spec.md §4.6: it walks
// a directory of connector manifests, applies ${ENV_NAME} substitution, and
// registers each declared instance in the Registry. It generalizes
// dexidp-dex's server.go connector-config loading (openConnector/
// OpenConnector/getConnector, driven by a static ConnectorsConfig map) to a
// filesystem-discovered manifest set, since spec.md's loader has no
// equivalent of dex's single static storage-backed config list.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/loader/pluginhost"
	"github.com/srallapally/openicf-connector-service/registry"
)

// InstanceDecl is one entry of a Manifest's optional "instances" array: a
// concrete instance id plus its own config (merged under the manifest's
// base config) and an optional connector version override.
type InstanceDecl struct {
	ID               string         `json:"id"`
	Config           map[string]any `json:"config"`
	ConnectorVersion string         `json:"connectorVersion"`
}

// Manifest is the on-disk shape of one connector manifest, per spec.md §6:
// { id, type, version, entry, config?, instances? }. Entry names either a
// compiled-in factory (resolved against the Loader's registered entries) or
// a subprocess plugin executable path, resolved via package pluginhost when
// it does not match a compiled-in entry.
type Manifest struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Version   string         `json:"version"`
	Entry     string         `json:"entry"`
	Config    map[string]any `json:"config"`
	Instances []InstanceDecl `json:"instances"`
}

// Loader registers compiled-in factories/config builders and loads manifest
// directories against a Registry.
type Loader struct {
	reg      *registry.Registry
	compiled map[string]connector.Factory
}

// New builds a Loader bound to reg. Callers register compiled-in connector
// types via RegisterEntry before calling LoadDir; a manifest whose "entry"
// does not match a registered compiled-in entry is resolved as a subprocess
// plugin path through package pluginhost instead.
func New(reg *registry.Registry) *Loader {
	return &Loader{reg: reg, compiled: make(map[string]connector.Factory)}
}

// RegisterEntry associates a compiled-in factory with the manifest "entry"
// name a manifest author uses to select it, mirroring dexidp-dex's
// ConnectorsConfig map of `func() ConnectorConfig` keyed by connector id
// rather than a dynamically-loaded module path.
func (l *Loader) RegisterEntry(entry string, factory connector.Factory) {
	l.compiled[entry] = factory
}

// FactoryMap is a compiled-in entry-name -> factory table, used to seed a
// Loader's compiled entries before LoadDir runs. Callers typically build
// one in main() by importing each first-party connector package.
type FactoryMap map[string]connector.Factory

// RegisterAll registers every (entry, factory) pair in m onto l.
func RegisterAll(l *Loader, m FactoryMap) {
	for entry, factory := range m {
		l.RegisterEntry(entry, factory)
	}
}

// Result reports the outcome of loading one manifest directory.
type Result struct {
	Loaded []string // instance ids successfully initialized
	Errors []ManifestError
}

// ManifestError pairs a manifest's path (and, for a per-instance failure,
// the offending instance id) with why it failed to load.
type ManifestError struct {
	Path       string
	InstanceID string // empty when the failure is manifest-wide
	Err        error
}

// LoadDir walks dir non-recursively for *.json manifest files, substitutes
// ${ENV_NAME} placeholders in each, and initializes every declared instance.
// log is forwarded to each instance's FactoryContext.Logger (spec.md
// §4.5); a nil log falls back to slog.Default(). One manifest's failure, or
// one instance's failure within a manifest, does not prevent any other
// manifest or instance from loading, per spec.md §4.6's per-manifest error
// isolation and testable property 4; all failures are collected onto
// Result.Errors rather than short-circuiting the walk.
func (l *Loader) LoadDir(ctx context.Context, log *slog.Logger, dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("read manifest directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var res Result
	for _, name := range names {
		path := filepath.Join(dir, name)
		loaded, errs := l.loadManifest(ctx, log, path)
		res.Loaded = append(res.Loaded, loaded...)
		res.Errors = append(res.Errors, errs...)
	}
	return res, nil
}

func (l *Loader) loadManifest(ctx context.Context, log *slog.Logger, path string) ([]string, []ManifestError) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("read %s: %w", path, err)}}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("parse %s: %w", path, err)}}
	}
	substituted, err := substituteEnv(decoded)
	if err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("environment substitution in %s: %w", path, err)}}
	}

	reencoded, err := json.Marshal(substituted)
	if err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("re-encode %s after env substitution: %w", path, err)}}
	}
	var m Manifest
	if err := json.Unmarshal(reencoded, &m); err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("decode manifest %s: %w", path, err)}}
	}

	if m.ID == "" || m.Type == "" || m.Version == "" || m.Entry == "" {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("manifest %s missing required id/type/version/entry", path)}}
	}

	if err := l.resolveEntry(m); err != nil {
		return nil, []ManifestError{{Path: path, Err: fmt.Errorf("resolve entry %q in %s: %w", m.Entry, path, err)}}
	}

	instances := m.Instances
	if len(instances) == 0 {
		// No instances declared: the manifest's own top-level id/config is
		// the sole instance, per spec.md §4.6 ("if no instances are
		// declared for a manifest, warn but continue" — here, "continue"
		// means "this manifest still yields its one top-level instance"
		// rather than zero, so every existing single-instance manifest
		// keeps working without an explicit instances array).
		instances = []InstanceDecl{{ID: m.ID, Config: m.Config, ConnectorVersion: m.Version}}
	}

	var loaded []string
	var errs []ManifestError
	for _, inst := range instances {
		if inst.ID == "" {
			errs = append(errs, ManifestError{Path: path, Err: fmt.Errorf("instance missing required id")})
			continue
		}
		version := inst.ConnectorVersion
		if version == "" {
			version = m.Version
		}
		mergedConfig := mergeConfig(m.Config, inst.Config)

		if _, err := l.reg.InitInstance(ctx, log, inst.ID, m.Type, version, mergedConfig); err != nil {
			errs = append(errs, ManifestError{Path: path, InstanceID: inst.ID, Err: fmt.Errorf("init instance %q from %s: %w", inst.ID, path, err)})
			continue
		}
		loaded = append(loaded, inst.ID)
	}
	return loaded, errs
}

// resolveEntry makes m.Type/m.Version resolvable by Registry.InitInstance:
// if m.Entry names a compiled-in factory, it is registered directly; if it
// doesn't, m.Entry is treated as a subprocess plugin executable path and
// wired through package pluginhost instead (spec.md §4.6's two registration
// paths).
func (l *Loader) resolveEntry(m Manifest) error {
	if factory, ok := l.compiled[m.Entry]; ok {
		l.reg.RegisterFactory(m.Type, m.Version, factory)
		return nil
	}

	path := m.Entry
	l.reg.RegisterFactory(m.Type, m.Version, pluginhost.Factory)
	l.reg.RegisterConfigBuilder(m.Type, m.Version, func(raw any) (connector.Config, error) {
		cfgMap, _ := raw.(map[string]any)
		return pluginhost.BuildConfig(map[string]any{"path": path, "config": cfgMap})
	})
	return nil
}

// mergeConfig shallow-merges base over instance config, per spec.md §4.6:
// base values win on key conflicts, instance-only keys pass through
// untouched.
func mergeConfig(base, instance map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(instance))
	for k, v := range instance {
		merged[k] = v
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged
}

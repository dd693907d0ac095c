package loader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/registry"
)

type recordingConfig struct{ Greeting string }

func (c *recordingConfig) Validate() error { return nil }

func buildRecordingConfig(raw any) (connector.Config, error) {
	m, _ := raw.(map[string]any)
	g, _ := m["greeting"].(string)
	return &recordingConfig{Greeting: g}, nil
}

type recordingConnector struct{ cfg *recordingConfig }

func (r *recordingConnector) Close() error { return nil }

func recordingFactory(ctx connector.FactoryContext) (connector.Connector, error) {
	cfg := ctx.Config.(*recordingConfig)
	return &recordingConnector{cfg: cfg}, nil
}

func writeManifest(t *testing.T, dir, name string, m Manifest) {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func newRecordingLoader(reg *registry.Registry) *Loader {
	reg.RegisterConfigBuilder("recording", "1.0.0", buildRecordingConfig)
	l := New(reg)
	l.RegisterEntry("recording-module", recordingFactory)
	return l
}

func TestLoadDirSubstitutesEnvAndInitializes(t *testing.T) {
	t.Setenv("LOADER_TEST_GREETING", "hello-from-env")

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", Manifest{
		ID: "inst-a", Type: "recording", Version: "1.0.0", Entry: "recording-module",
		Config: map[string]any{"greeting": "${LOADER_TEST_GREETING}"},
	})

	reg := registry.New()
	l := newRecordingLoader(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"inst-a"}, result.Loaded)
	require.Empty(t, result.Errors)

	inst, err := reg.Get("inst-a")
	require.NoError(t, err)
	rc := inst.Impl.(*recordingConnector)
	require.Equal(t, "hello-from-env", rc.cfg.Greeting)
}

func TestLoadDirIsolatesPerManifestFailures(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad.json", Manifest{ID: "inst-bad", Type: "unregistered-type", Version: "1.0.0", Entry: "nonexistent-entry"})
	writeManifest(t, dir, "good.json", Manifest{ID: "inst-good", Type: "recording", Version: "1.0.0", Entry: "recording-module", Config: map[string]any{"greeting": "hi"}})

	reg := registry.New()
	l := newRecordingLoader(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"inst-good"}, result.Loaded)
	require.Len(t, result.Errors, 1)
}

func TestLoadDirMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "incomplete.json", Manifest{ID: "", Type: "recording", Version: "1.0.0", Entry: "recording-module"})

	reg := registry.New()
	l := New(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
}

func TestLoadDirMissingEntryFails(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "no-entry.json", Manifest{ID: "inst-a", Type: "recording", Version: "1.0.0"})

	reg := registry.New()
	l := newRecordingLoader(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
}

// TestLoadDirInitializesExactlyNInstances exercises testable property 4: a
// manifest declaring N instances yields exactly N InitInstance calls.
func TestLoadDirInitializesExactlyNInstances(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "multi.json", Manifest{
		ID: "ignored", Type: "recording", Version: "1.0.0", Entry: "recording-module",
		Config: map[string]any{"greeting": "base"},
		Instances: []InstanceDecl{
			{ID: "inst-1"},
			{ID: "inst-2", Config: map[string]any{"greeting": "override"}},
			{ID: "inst-3"},
		},
	})

	reg := registry.New()
	l := newRecordingLoader(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"inst-1", "inst-2", "inst-3"}, result.Loaded)
	require.Empty(t, result.Errors)

	inst1, err := reg.Get("inst-1")
	require.NoError(t, err)
	require.Equal(t, "base", inst1.Impl.(*recordingConnector).cfg.Greeting)

	inst2, err := reg.Get("inst-2")
	require.NoError(t, err)
	require.Equal(t, "base", inst2.Impl.(*recordingConnector).cfg.Greeting, "base config wins over instance config on key conflict")
}

// TestLoadDirIsolatesPerInstanceFailures exercises one instance failing
// (missing id) within a multi-instance manifest without blocking its
// siblings.
func TestLoadDirIsolatesPerInstanceFailures(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "multi.json", Manifest{
		ID: "ignored", Type: "recording", Version: "1.0.0", Entry: "recording-module",
		Instances: []InstanceDecl{
			{ID: "inst-ok"},
			{ID: ""},
		},
	})

	reg := registry.New()
	l := newRecordingLoader(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"inst-ok"}, result.Loaded)
	require.Len(t, result.Errors, 1)
}

// TestLoadDirResolvesUnknownEntryAsSubprocessPlugin exercises the second of
// spec.md §4.6's two registration paths: an entry that doesn't match a
// compiled-in registration is wired through package pluginhost, which fails
// to dial a nonexistent executable but does so via the plugin path, not a
// generic UnknownConnectorType error.
func TestLoadDirResolvesUnknownEntryAsSubprocessPlugin(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "plugin.json", Manifest{
		ID: "inst-plugin", Type: "external", Version: "1.0.0",
		Entry: "/nonexistent/plugin-binary",
	})

	reg := registry.New()
	l := New(reg)
	result, err := l.LoadDir(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Empty(t, result.Loaded)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0].Err.Error(), "plugin-binary")
}

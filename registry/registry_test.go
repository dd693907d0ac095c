package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
)

type stubConnector struct{ closed bool }

func (s *stubConnector) Close() error { s.closed = true; return nil }

type stubConfig struct {
	shouldFail bool
}

func (c *stubConfig) Validate() error {
	if c.shouldFail {
		return context.DeadlineExceeded
	}
	return nil
}

func buildStubConfig(raw any) (connector.Config, error) {
	m, _ := raw.(map[string]any)
	fail, _ := m["fail"].(bool)
	return &stubConfig{shouldFail: fail}, nil
}

func stubFactory(ctx connector.FactoryContext) (connector.Connector, error) {
	return &stubConnector{}, nil
}

var lastFactoryContext connector.FactoryContext

func recordingStubFactory(ctx connector.FactoryContext) (connector.Connector, error) {
	lastFactoryContext = ctx
	return &stubConnector{}, nil
}

func TestInitInstanceRunsBuilderAndValidate(t *testing.T) {
	r := New()
	r.RegisterFactory("stub", "1.0.0", stubFactory)
	r.RegisterConfigBuilder("stub", "1.0.0", buildStubConfig)

	inst, err := r.InitInstance(context.Background(), nil, "i1", "stub", "1.0.0", map[string]any{"fail": false})
	require.NoError(t, err)
	require.Equal(t, "i1", inst.ID)

	_, err = r.InitInstance(context.Background(), nil, "i2", "stub", "1.0.0", map[string]any{"fail": true})
	require.Error(t, err)
	require.True(t, connerr.Of(err, connerr.KindConfigInvalid))
}

func TestInitInstanceUnknownType(t *testing.T) {
	r := New()
	_, err := r.InitInstance(context.Background(), nil, "i1", "missing", "1.0.0", nil)
	require.True(t, connerr.Of(err, connerr.KindUnknownConnectorType))
}

func TestInitInstancePassesLoggerToFactory(t *testing.T) {
	r := New()
	r.RegisterFactory("stub", "1.0.0", recordingStubFactory)

	log := slog.Default()
	_, err := r.InitInstance(context.Background(), log, "i1", "stub", "1.0.0", nil)
	require.NoError(t, err)
	require.Same(t, log, lastFactoryContext.Logger)
}

func TestInitInstanceDefaultsNilLoggerToSlogDefault(t *testing.T) {
	r := New()
	r.RegisterFactory("stub", "1.0.0", recordingStubFactory)

	_, err := r.InitInstance(context.Background(), nil, "i1", "stub", "1.0.0", nil)
	require.NoError(t, err)
	require.NotNil(t, lastFactoryContext.Logger)
}

func TestGetNotFound(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	require.ErrorIs(t, err, connerr.ErrConnectorNotFound)
}

func TestGetVersionsSemverOrdering(t *testing.T) {
	r := New()
	r.RegisterFactory("stub", "2.0.0", stubFactory)
	r.RegisterFactory("stub", "1.0.0", stubFactory)
	r.RegisterFactory("stub", "1.10.0", stubFactory)

	versions, err := r.GetVersions("stub")
	require.NoError(t, err)
	require.Equal(t, []string{"1.0.0", "1.10.0", "2.0.0"}, versions)

	latest, err := r.GetLatestVersion("stub")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", latest)
}

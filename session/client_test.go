package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srallapally/openicf-connector-service/breaker"
	"github.com/srallapally/openicf-connector-service/cache"
	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/facade"
	"github.com/srallapally/openicf-connector-service/model"
)

func TestDecodeOptionsEmptyPayload(t *testing.T) {
	opts, err := decodeOptions(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, model.Options{}, opts)
}

func TestDecodeOptionsRejectsInvalid(t *testing.T) {
	_, err := decodeOptions(map[string]any{
		"options": map[string]any{"pageSize": -5},
	})
	require.Error(t, err)
}

func TestDecodeAttrsConvertsJSONValues(t *testing.T) {
	attrs, err := decodeAttrs(map[string]any{
		"attrs": map[string]any{
			"name": "alice",
			"age":  float64(30),
		},
	}, "attrs")
	require.NoError(t, err)
	require.Equal(t, model.StringValue("alice"), attrs["name"])
	require.Equal(t, model.IntValue(30), attrs["age"])
}

func TestDecodeFilterNilWhenAbsent(t *testing.T) {
	node, err := decodeFilter(map[string]any{})
	require.NoError(t, err)
	require.Nil(t, node)
}

func TestDecodeFilterParsesEquality(t *testing.T) {
	node, err := decodeFilter(map[string]any{
		"filter": map[string]any{
			"type":  "CMP",
			"op":    "EQ",
			"path":  []any{"name"},
			"value": "alice",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestErrorFrameCarriesKnownKind(t *testing.T) {
	f := errorFrame("req-1", connerr.New(connerr.KindCircuitOpen, "breaker open"))
	require.Equal(t, frameTypeError, f.Type)
	require.Equal(t, "req-1", f.RequestID)
	require.Equal(t, string(connerr.KindCircuitOpen), f.ErrorKind)
}

func TestErrorFrameDefaultsUnknownKindToBackendError(t *testing.T) {
	f := errorFrame("req-2", errors.New("plain failure"))
	require.Equal(t, string(connerr.KindBackendError), f.ErrorKind)
}

type dispatchFixtureBackend struct {
	objects        map[string]model.ConnectorObject
	script         connector.ScriptContext
	gotObjectClass string
}

func (b *dispatchFixtureBackend) Close() error { return nil }

func (b *dispatchFixtureBackend) Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error) {
	b.gotObjectClass = objectClass
	obj, ok := b.objects[uid]
	if !ok {
		return nil, nil
	}
	return &obj, nil
}

func (b *dispatchFixtureBackend) RunScript(ctx context.Context, sc connector.ScriptContext) (any, error) {
	b.script = sc
	return "ran", nil
}

func newDispatchFixture() (*dispatchFixtureBackend, *facade.Facade) {
	backend := &dispatchFixtureBackend{objects: map[string]model.ConnectorObject{
		"u1": {ObjectClass: "User", UID: "u1", Attributes: map[string]model.AttributeValue{"name": model.StringValue("alice")}},
	}}
	c := cache.New(100, time.Minute)
	return backend, facade.New("inst-1", backend, c, &breaker.Settings{})
}

// TestDispatchReadsObjectClassFromPayload exercises the payload-level
// objectClass field: spec.md §4.7 nests it under payload alongside uid/attrs
// rather than as a top-level frame field.
func TestDispatchReadsObjectClassFromPayload(t *testing.T) {
	backend, fc := newDispatchFixture()
	result, err := dispatch(context.Background(), fc, Frame{
		Operation: "get",
		Payload:   map[string]any{"objectClass": "User", "uid": "u1"},
	})
	require.NoError(t, err)
	obj, ok := result.(*model.ConnectorObject)
	require.True(t, ok)
	require.Equal(t, "User", obj.ObjectClass)
	require.Equal(t, "User", backend.gotObjectClass)
}

// TestDispatchScriptOnConnectorReadsNestedContext exercises spec.md §4.7's
// scriptOnConnector payload shape: language/script/params live under a
// nested "context" object, not flat on the payload.
func TestDispatchScriptOnConnectorReadsNestedContext(t *testing.T) {
	backend, fc := newDispatchFixture()
	_, err := dispatch(context.Background(), fc, Frame{
		Operation: "scriptOnConnector",
		Payload: map[string]any{
			"context": map[string]any{
				"language": "groovy",
				"script":   "return 1",
				"params":   map[string]any{"x": float64(1)},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "groovy", backend.script.Language)
	require.Equal(t, "return 1", backend.script.Script)
	require.Equal(t, map[string]any{"x": float64(1)}, backend.script.Params)
}

func TestManagerLookupResolvesFrameConnectorID(t *testing.T) {
	_, fc := newDispatchFixture()
	lookup := func(id string) (*facade.Facade, bool) {
		if id == "inst-1" {
			return fc, true
		}
		return nil, false
	}
	m := &Manager{lookup: lookup}
	f := Frame{ConnectorID: "inst-1", Operation: "get", Payload: map[string]any{"objectClass": "User", "uid": "u1"}}

	fc2, ok := m.lookup(f.ConnectorID)
	require.True(t, ok)
	require.Same(t, fc, fc2)
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/facade"
	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
	"github.com/srallapally/openicf-connector-service/registry"
)

// Frame is the wire shape of every message on the WebSocket link, per
// spec.md §4.7: a discriminated-by-Type JSON object. Unused fields are
// omitted on encode via omitempty, so e.g. a ping frame serializes as just
// {"type":"ping"}.
type Frame struct {
	Type string `json:"type"`

	// ping/pong carry nothing further.

	// connectors (response to list-connectors) lists live instance ids.
	Connectors []string `json:"connectors,omitempty"`

	// operation / response.
	RequestID   string         `json:"requestId,omitempty"`
	ConnectorID string         `json:"connectorId,omitempty"`
	Operation   string         `json:"operation,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Result      any            `json:"result,omitempty"`

	// error.
	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	// service-info, sent once on successful connect.
	Service   string `json:"service,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

const (
	frameTypePing           = "ping"
	frameTypePong           = "pong"
	frameTypeListConnectors = "list-connectors"
	frameTypeConnectors     = "connectors"
	frameTypeOperation      = "operation"
	frameTypeResponse       = "response"
	frameTypeError          = "error"
	frameTypeServiceInfo    = "service-info"
)

// defaultServiceName names this process in the service-info frame when the
// caller does not override it via New.
const defaultServiceName = "connector-host"

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// FacadeLookup resolves an instance id to the Facade serving it, so the
// Manager never talks to a connector.Connector directly (every operation
// goes through breaker + cache, same as locally-served requests).
type FacadeLookup func(instanceID string) (*facade.Facade, bool)

// Manager owns one reconnecting WebSocket session to a controlling server,
// authenticated via a TokenProvider and dispatching operation frames
// against a Registry/FacadeLookup pair.
type Manager struct {
	url     string
	service string
	tokens  *TokenProvider
	reg     *registry.Registry
	lookup  FacadeLookup
	log     *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	reconnecting bool
	closed       bool
}

// New builds a Manager. url is the WebSocket endpoint to dial; service names
// this process in the service-info frame sent on every successful connect,
// defaulting to defaultServiceName when empty.
func New(url string, tokens *TokenProvider, reg *registry.Registry, lookup FacadeLookup, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{url: url, service: defaultServiceName, tokens: tokens, reg: reg, lookup: lookup, log: log}
}

// WithService overrides the service name reported in the service-info frame.
func (m *Manager) WithService(name string) *Manager {
	if name != "" {
		m.service = name
	}
	return m
}

// Run connects and serves frames until ctx is canceled, reconnecting with
// exponential backoff (1s doubling to a 30s cap) on any disconnect, per
// spec.md §4.7. It returns nil when ctx is canceled, and an error once Close
// has been called (before or during Run).
func (m *Manager) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return fmt.Errorf("session manager is closed")
		}

		connected, err := m.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			// The dial succeeded before the connection ended: the next attempt starts
			// fresh rather than inheriting the prior failure's backoff.
			backoff = initialBackoff
		}
		if err != nil {
			m.log.Warn("session connection ended, reconnecting", "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Close shuts the manager down; a subsequent Run call returns immediately.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// runOnce dials, serves frames until disconnect, and reports whether the
// dial itself succeeded (so Run knows whether to reset its backoff) along
// with the error that ended the session, if any.
func (m *Manager) runOnce(ctx context.Context) (bool, error) {
	tok, err := m.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, m.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.tokens.Invalidate()
		}
		return false, fmt.Errorf("dial session endpoint: %w", err)
	}
	defer conn.Close()

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	if err := conn.WriteJSON(Frame{
		Type:       frameTypeServiceInfo,
		Service:    m.service,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		Connectors: m.reg.IDs(),
	}); err != nil {
		return true, fmt.Errorf("send service-info frame: %w", err)
	}

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return true, fmt.Errorf("read frame: %w", err)
		}
		if err := m.handle(ctx, conn, f); err != nil {
			m.log.Error("frame handling failed", "type", f.Type, "error", err)
		}
	}
}

func (m *Manager) handle(ctx context.Context, conn *websocket.Conn, f Frame) error {
	switch f.Type {
	case frameTypePing:
		return conn.WriteJSON(Frame{Type: frameTypePong})
	case frameTypeListConnectors:
		return conn.WriteJSON(Frame{Type: frameTypeConnectors, Connectors: m.reg.IDs()})
	case frameTypeOperation:
		return m.handleOperation(ctx, conn, f)
	default:
		m.log.Warn("unknown frame type received", "type", f.Type)
		if f.RequestID == "" {
			return nil
		}
		return conn.WriteJSON(Frame{
			Type:         frameTypeError,
			RequestID:    f.RequestID,
			ErrorKind:    string(connerr.KindProtocolError),
			ErrorMessage: fmt.Sprintf("unknown frame type %q", f.Type),
		})
	}
}

func (m *Manager) handleOperation(ctx context.Context, conn *websocket.Conn, f Frame) error {
	fc, ok := m.lookup(f.ConnectorID)
	if !ok {
		return conn.WriteJSON(errorFrame(f.RequestID, connerr.ErrConnectorNotFound))
	}

	result, err := dispatch(ctx, fc, f)
	if err != nil {
		return conn.WriteJSON(errorFrame(f.RequestID, err))
	}
	return conn.WriteJSON(Frame{Type: frameTypeResponse, RequestID: f.RequestID, Result: result})
}

func errorFrame(requestID string, err error) Frame {
	kind, ok := connerr.KindOf(err)
	if !ok {
		kind = connerr.KindBackendError
	}
	return Frame{
		Type:         frameTypeError,
		RequestID:    requestID,
		ErrorKind:    string(kind),
		ErrorMessage: err.Error(),
	}
}

// dispatch decodes f.Payload per spec.md §4.7's operation table and invokes
// the matching Facade method.
func dispatch(ctx context.Context, fc *facade.Facade, f Frame) (any, error) {
	objectClass, _ := f.Payload["objectClass"].(string)

	switch f.Operation {
	case "test":
		return nil, fc.Test(ctx)
	case "schema":
		return fc.Schema(ctx)
	case "get":
		uid, _ := f.Payload["uid"].(string)
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.Get(ctx, objectClass, uid, opts)
	case "create":
		attrs, err := decodeAttrs(f.Payload, "attrs")
		if err != nil {
			return nil, err
		}
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.Create(ctx, objectClass, attrs, opts)
	case "update":
		uid, _ := f.Payload["uid"].(string)
		attrs, err := decodeAttrs(f.Payload, "attrs")
		if err != nil {
			return nil, err
		}
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.Update(ctx, objectClass, uid, attrs, opts)
	case "delete":
		uid, _ := f.Payload["uid"].(string)
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return nil, fc.Delete(ctx, objectClass, uid, opts)
	case "addAttributeValues":
		uid, _ := f.Payload["uid"].(string)
		attrs, err := decodeAttrs(f.Payload, "attrs")
		if err != nil {
			return nil, err
		}
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.AddAttributeValues(ctx, objectClass, uid, attrs, opts)
	case "removeAttributeValues":
		uid, _ := f.Payload["uid"].(string)
		attrs, err := decodeAttrs(f.Payload, "attrs")
		if err != nil {
			return nil, err
		}
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.RemoveAttributeValues(ctx, objectClass, uid, attrs, opts)
	case "search":
		node, err := decodeFilter(f.Payload)
		if err != nil {
			return nil, err
		}
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.Search(ctx, objectClass, node, opts)
	case "sync":
		token, _ := f.Payload["token"].(string)
		opts, err := decodeOptions(f.Payload)
		if err != nil {
			return nil, err
		}
		return fc.Sync(ctx, objectClass, model.SyncToken{Value: token}, opts)
	case "scriptOnConnector":
		scriptCtx, _ := f.Payload["context"].(map[string]any)
		language, _ := scriptCtx["language"].(string)
		script, _ := scriptCtx["script"].(string)
		params, _ := scriptCtx["params"].(map[string]any)
		return fc.ScriptOnConnector(ctx, connector.ScriptContext{Language: language, Script: script, Params: params})
	default:
		return nil, connerr.New(connerr.KindProtocolError, fmt.Sprintf("unknown operation %q", f.Operation))
	}
}

func decodeOptions(payload map[string]any) (model.Options, error) {
	raw, ok := payload["options"]
	if !ok || raw == nil {
		return model.Options{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return model.Options{}, connerr.Wrap(connerr.KindProtocolError, "encode options payload", err)
	}
	var opts model.Options
	if err := json.Unmarshal(b, &opts); err != nil {
		return model.Options{}, connerr.Wrap(connerr.KindProtocolError, "decode options payload", err)
	}
	if err := opts.Validate(); err != nil {
		return model.Options{}, connerr.Wrap(connerr.KindValidationFailed, "invalid options", err)
	}
	return opts, nil
}

func decodeAttrs(payload map[string]any, key string) (map[string]model.AttributeValue, error) {
	raw, _ := payload[key].(map[string]any)
	out := make(map[string]model.AttributeValue, len(raw))
	for k, v := range raw {
		av, err := model.FromJSON(v)
		if err != nil {
			return nil, connerr.Wrap(connerr.KindValidationFailed, fmt.Sprintf("attribute %q", k), err)
		}
		out[k] = av
	}
	return out, nil
}

func decodeFilter(payload map[string]any) (*filter.Node, error) {
	raw, ok := payload["filter"]
	if !ok || raw == nil {
		return nil, nil
	}
	node, err := filter.Parse(raw)
	if err != nil {
		return nil, err
	}
	return node, nil
}

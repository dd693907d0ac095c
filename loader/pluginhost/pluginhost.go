// Package pluginhost hosts connectors running as separate subprocesses,
// generalizing dexidp-dex's connector/plugin package (handshake config +
// net/rpc-backed Plugin/Client/Server triplet dispensing a capability
// interface) from dex's password/callback connector pair to the uniform
// CRUD/search/sync SPI in package connector. Only the operations that make
// sense across a process boundary without streaming are exposed; a plugin
// that wants StreamSearcher semantics implements ListSearcher instead and
// lets the Facade bridge it, per spec.md §9.
package pluginhost

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
)

// handshakeConfig mirrors dexidp-dex's plugin handshake, renamed to this
// host's own magic cookie so a binary built for one cannot be accidentally
// dispensed by the other.
var handshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CONNECTOR_HOST_PLUGIN",
	MagicCookieValue: "openicf-connector-service",
}

const pluginName = "connector"

var pluginMap = map[string]goplugin.Plugin{
	pluginName: &ConnectorPlugin{},
}

// RPCConnector is the capability interface a plugin subprocess implements;
// it is the RPC-transportable subset of package connector's capability
// interfaces (schema, test, get, create, update, delete, search, sync).
// ScriptRunner and the streaming/attribute-value-mutation capabilities are
// intentionally left to in-process connectors only, since go-plugin's
// net/rpc transport gives every call the same shape as these.
type RPCConnector interface {
	Configure(raw map[string]any) error
	Close() error
	Test(ctx context.Context) error
	Schema(ctx context.Context) (model.Schema, error)
	Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error)
	Create(ctx context.Context, objectClass string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
	Update(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error)
	Delete(ctx context.Context, objectClass, uid string, opts model.Options) error
	Search(ctx context.Context, objectClass string, f *filter.Node, opts model.Options) (connector.SearchResult, error)
	Sync(ctx context.Context, objectClass string, token model.SyncToken, opts model.Options) (connector.SyncResult, error)
}

// --- RPC argument/response envelopes -------------------------------------

type configureArgs struct{ Raw map[string]any }
type testArgs struct{}
type schemaArgs struct{}
type getArgs struct {
	ObjectClass, UID string
	Opts             model.Options
}
type getResp struct{ Obj *model.ConnectorObject }
type writeArgs struct {
	ObjectClass string
	UID         string
	Attrs       map[string]model.AttributeValue
	Opts        model.Options
}
type writeResp struct{ Obj model.ConnectorObject }
type deleteArgs struct {
	ObjectClass, UID string
	Opts             model.Options
}
type searchArgs struct {
	ObjectClass string
	Filter      *filter.Node
	Opts        model.Options
}
type syncArgs struct {
	ObjectClass string
	Token       model.SyncToken
	Opts        model.Options
}

// --- client-side stub (host process) -------------------------------------

// rpcClient implements connector.Connector plus the optional interfaces
// covered by RPCConnector, forwarding every call across the net/rpc link.
type rpcClient struct{ client *rpc.Client }

var (
	_ connector.Connector     = (*rpcClient)(nil)
	_ connector.Tester        = (*rpcClient)(nil)
	_ connector.SchemaProvider = (*rpcClient)(nil)
	_ connector.Getter        = (*rpcClient)(nil)
	_ connector.Creator       = (*rpcClient)(nil)
	_ connector.Updater       = (*rpcClient)(nil)
	_ connector.Deleter       = (*rpcClient)(nil)
	_ connector.ListSearcher  = (*rpcClient)(nil)
	_ connector.Syncer        = (*rpcClient)(nil)
)

func (c *rpcClient) Close() error {
	var resp error
	return c.client.Call("Plugin.Close", testArgs{}, &resp)
}

func (c *rpcClient) Test(ctx context.Context) error {
	var resp error
	if err := c.client.Call("Plugin.Test", testArgs{}, &resp); err != nil {
		return err
	}
	return resp
}

func (c *rpcClient) Schema(ctx context.Context) (model.Schema, error) {
	var resp model.Schema
	err := c.client.Call("Plugin.Schema", schemaArgs{}, &resp)
	return resp, err
}

func (c *rpcClient) Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error) {
	var resp getResp
	if err := c.client.Call("Plugin.Get", getArgs{objectClass, uid, opts}, &resp); err != nil {
		return nil, err
	}
	return resp.Obj, nil
}

func (c *rpcClient) Create(ctx context.Context, objectClass string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	var resp writeResp
	err := c.client.Call("Plugin.Create", writeArgs{ObjectClass: objectClass, Attrs: attrs, Opts: opts}, &resp)
	return resp.Obj, err
}

func (c *rpcClient) Update(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	var resp writeResp
	err := c.client.Call("Plugin.Update", writeArgs{ObjectClass: objectClass, UID: uid, Attrs: attrs, Opts: opts}, &resp)
	return resp.Obj, err
}

func (c *rpcClient) Delete(ctx context.Context, objectClass, uid string, opts model.Options) error {
	var resp error
	if err := c.client.Call("Plugin.Delete", deleteArgs{objectClass, uid, opts}, &resp); err != nil {
		return err
	}
	return resp
}

func (c *rpcClient) Search(ctx context.Context, objectClass string, f *filter.Node, opts model.Options) (connector.SearchResult, error) {
	var resp connector.SearchResult
	err := c.client.Call("Plugin.Search", searchArgs{objectClass, f, opts}, &resp)
	return resp, err
}

func (c *rpcClient) Sync(ctx context.Context, objectClass string, token model.SyncToken, opts model.Options) (connector.SyncResult, error) {
	var resp connector.SyncResult
	err := c.client.Call("Plugin.Sync", syncArgs{objectClass, token, opts}, &resp)
	return resp, err
}

// --- server-side stub (plugin subprocess) --------------------------------

// Server wraps an RPCConnector implementation for dispensing over net/rpc;
// a plugin subprocess's main() constructs one and passes it to Serve.
type Server struct{ Impl RPCConnector }

func (s *Server) Configure(args configureArgs, resp *error) error {
	*resp = s.Impl.Configure(args.Raw)
	return nil
}

func (s *Server) Close(args testArgs, resp *error) error {
	*resp = s.Impl.Close()
	return nil
}

func (s *Server) Test(args testArgs, resp *error) error {
	*resp = s.Impl.Test(context.Background())
	return nil
}

func (s *Server) Schema(args schemaArgs, resp *model.Schema) error {
	schema, err := s.Impl.Schema(context.Background())
	*resp = schema
	return err
}

func (s *Server) Get(args getArgs, resp *getResp) error {
	obj, err := s.Impl.Get(context.Background(), args.ObjectClass, args.UID, args.Opts)
	resp.Obj = obj
	return err
}

func (s *Server) Create(args writeArgs, resp *writeResp) error {
	obj, err := s.Impl.Create(context.Background(), args.ObjectClass, args.Attrs, args.Opts)
	resp.Obj = obj
	return err
}

func (s *Server) Update(args writeArgs, resp *writeResp) error {
	obj, err := s.Impl.Update(context.Background(), args.ObjectClass, args.UID, args.Attrs, args.Opts)
	resp.Obj = obj
	return err
}

func (s *Server) Delete(args deleteArgs, resp *error) error {
	*resp = s.Impl.Delete(context.Background(), args.ObjectClass, args.UID, args.Opts)
	return nil
}

func (s *Server) Search(args searchArgs, resp *connector.SearchResult) error {
	result, err := s.Impl.Search(context.Background(), args.ObjectClass, args.Filter, args.Opts)
	*resp = result
	return err
}

func (s *Server) Sync(args syncArgs, resp *connector.SyncResult) error {
	result, err := s.Impl.Sync(context.Background(), args.ObjectClass, args.Token, args.Opts)
	*resp = result
	return err
}

// ConnectorPlugin is the go-plugin Plugin implementation dispensing either
// end of the RPC link, following dexidp-dex's PasswordConnectorPlugin shape.
type ConnectorPlugin struct {
	Impl RPCConnector
}

func (p *ConnectorPlugin) Server(*goplugin.MuxBroker) (any, error) {
	return &Server{Impl: p.Impl}, nil
}

func (ConnectorPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}

// Serve runs the plugin subprocess side; a plugin binary's main() calls
// this with its RPCConnector implementation and never returns.
func Serve(impl RPCConnector) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: handshakeConfig,
		Plugins: map[string]goplugin.Plugin{
			pluginName: &ConnectorPlugin{Impl: impl},
		},
	})
}

// Config is a loader.Manifest's connector.Config for a plugin-hosted
// instance: the path to the plugin binary plus its raw config, passed
// through to the subprocess's Configure call unvalidated by the host
// process, mirroring dex's plugin.Config.
type Config struct {
	Path   string         `json:"path"`
	Raw    map[string]any `json:"config"`
	client *goplugin.Client
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("plugin config requires path")
	}
	return nil
}

// BuildConfig implements connector.ConfigBuilder for plugin-hosted manifests.
func BuildConfig(raw any) (connector.Config, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("plugin config must be a JSON object")
	}
	cfg := &Config{Raw: m}
	if p, ok := m["path"].(string); ok {
		cfg.Path = p
	}
	if inner, ok := m["config"].(map[string]any); ok {
		cfg.Raw = inner
	}
	return cfg, nil
}

// Factory dials the plugin subprocess named by Config.Path and returns the
// dispensed connector as a connector.Connector, registering it the same way
// a compiled-in factory does.
func Factory(ctx connector.FactoryContext) (connector.Connector, error) {
	cfg, ok := ctx.Config.(*Config)
	if !ok {
		return nil, fmt.Errorf("plugin factory requires *pluginhost.Config, got %T", ctx.Config)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         pluginMap,
		Cmd:             exec.Command(cfg.Path),
	})
	cfg.client = client

	rpcClientConn, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dial plugin %q: %w", cfg.Path, err)
	}

	raw, err := rpcClientConn.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense plugin %q: %w", cfg.Path, err)
	}

	conn, ok := raw.(*rpcClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed plugin %q is not a connector", cfg.Path)
	}

	var resp error
	if err := conn.client.Call("Plugin.Configure", configureArgs{Raw: cfg.Raw}, &resp); err != nil {
		client.Kill()
		return nil, fmt.Errorf("configure plugin %q: %w", cfg.Path, err)
	}
	if resp != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %q rejected config: %w", cfg.Path, resp)
	}

	return &hostedConnector{rpcClient: conn, client: client}, nil
}

// hostedConnector wraps rpcClient so Close also kills the subprocess.
type hostedConnector struct {
	*rpcClient
	client *goplugin.Client
}

func (h *hostedConnector) Close() error {
	err := h.rpcClient.Close()
	h.client.Kill()
	return err
}

// Package mock implements an in-memory reference connector exercising the
// full uniform operation SPI (schema, test, CRUD, search, sync, attribute
// add/remove). It requires no external service, following the shape of
// dexidp-dex's connector/mock package (a connector that "requires no user
// interaction"), retargeted here at the CRUD/search/sync surface instead of
// login. connectorhostd registers it as a compiled-in connector type.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
)

// ObjectClassUser is the only object class the mock connector exposes.
const ObjectClassUser = "User"

// Config is the mock connector's configuration. It has no required fields,
// so Validate never fails; it exists to demonstrate the registry's config
// builder / validate-hook wiring even for a connector with nothing to check.
type Config struct {
	// FailTest, if true, makes Test() return an error, simulating an
	// unreachable backend.
	FailTest bool `json:"failTest"`
}

// Validate implements connector.Validator. The mock connector has no
// required configuration, so this always succeeds; it exists to exercise
// the registry's "run Validate if present" path end to end.
func (c *Config) Validate() error { return nil }

// BuildConfig implements connector.ConfigBuilder: decodes raw (typically a
// map[string]any from the loader) into a *Config.
func BuildConfig(raw any) (connector.Config, error) {
	cfg := &Config{}
	m, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return cfg, nil
		}
		return nil, fmt.Errorf("mock connector config must be a JSON object")
	}
	if v, ok := m["failTest"].(bool); ok {
		cfg.FailTest = v
	}
	return cfg, nil
}

type record struct {
	obj      model.ConnectorObject
	version  int64
	deleted  bool
}

// Connector is the in-memory mock implementation. All capability
// interfaces from package connector are implemented.
type Connector struct {
	cfg *Config

	mu      sync.Mutex
	byUID   map[string]*record
	seq     int64
	changeLog []string // uids in write order, for Sync
}

var (
	_ connector.Connector            = (*Connector)(nil)
	_ connector.Tester                = (*Connector)(nil)
	_ connector.SchemaProvider        = (*Connector)(nil)
	_ connector.Getter                = (*Connector)(nil)
	_ connector.Creator               = (*Connector)(nil)
	_ connector.Updater               = (*Connector)(nil)
	_ connector.Deleter               = (*Connector)(nil)
	_ connector.AttributeValueAdder   = (*Connector)(nil)
	_ connector.AttributeValueRemover = (*Connector)(nil)
	_ connector.ListSearcher          = (*Connector)(nil)
	_ connector.Syncer                = (*Connector)(nil)
	_ connector.ScriptRunner          = (*Connector)(nil)
)

// New builds a Factory-compatible constructor for the mock connector.
func New(ctx connector.FactoryContext) (connector.Connector, error) {
	cfg, ok := ctx.Config.(*Config)
	if !ok {
		return nil, fmt.Errorf("mock connector requires *mock.Config, got %T", ctx.Config)
	}
	return &Connector{cfg: cfg, byUID: make(map[string]*record)}, nil
}

func (c *Connector) Close() error { return nil }

func (c *Connector) Test(ctx context.Context) error {
	if c.cfg.FailTest {
		return fmt.Errorf("mock connector configured to fail Test()")
	}
	return nil
}

func (c *Connector) Schema(ctx context.Context) (model.Schema, error) {
	oc := model.ObjectClassInfo{
		Name:        ObjectClassUser,
		IDAttribute: "uid",
		NameAttribute: "name",
		Supports: []model.Operation{
			model.OpCreate, model.OpUpdate, model.OpDelete,
			model.OpGet, model.OpSearch, model.OpSync,
		},
		Attributes: []model.SchemaAttribute{
			{Name: "name", Type: model.AttrString, Required: true, Creatable: true, Updateable: true, Readable: true, ReturnedByDefault: true},
			{Name: "email", Type: model.AttrString, Creatable: true, Updateable: true, Readable: true, ReturnedByDefault: true},
			{Name: "groups", Type: model.AttrString, MultiValued: true, Creatable: true, Updateable: true, Readable: true, ReturnedByDefault: false},
		},
	}
	return model.Schema{
		ObjectClasses: []model.ObjectClassInfo{oc},
		Features: model.SchemaFeatures{
			Paging:            true,
			Sorting:           true,
			ScriptOnConnector: true,
			ComplexAttributes: true,
		},
	}, nil
}

func (c *Connector) nextUID() string {
	c.seq++
	return "u" + strconv.FormatInt(c.seq, 10)
}

func (c *Connector) Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error) {
	if objectClass != ObjectClassUser {
		return nil, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byUID[uid]
	if !ok || r.deleted {
		return nil, nil
	}
	obj := projected(r.obj, opts.AttributesToGet)
	return &obj, nil
}

func (c *Connector) Create(ctx context.Context, objectClass string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	if objectClass != ObjectClassUser {
		return model.ConnectorObject{}, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	uid := c.nextUID()
	name := ""
	if v, ok := attrs["name"].(model.StringValue); ok {
		name = string(v)
	}
	obj := model.ConnectorObject{
		ObjectClass: objectClass,
		UID:         uid,
		Name:        name,
		Attributes:  cloneAttrs(attrs),
	}
	c.byUID[uid] = &record{obj: obj, version: c.nextVersion()}
	c.changeLog = append(c.changeLog, uid)
	return obj, nil
}

func (c *Connector) Update(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	if objectClass != ObjectClassUser {
		return model.ConnectorObject{}, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byUID[uid]
	if !ok || r.deleted {
		return model.ConnectorObject{}, fmt.Errorf("no such object %s/%s", objectClass, uid)
	}
	for k, v := range attrs {
		r.obj.Attributes[k] = v
	}
	if v, ok := attrs["name"].(model.StringValue); ok {
		r.obj.Name = string(v)
	}
	r.version = c.nextVersion()
	c.changeLog = append(c.changeLog, uid)
	return r.obj, nil
}

func (c *Connector) Delete(ctx context.Context, objectClass, uid string, opts model.Options) error {
	if objectClass != ObjectClassUser {
		return fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byUID[uid]
	if !ok || r.deleted {
		return fmt.Errorf("no such object %s/%s", objectClass, uid)
	}
	r.deleted = true
	r.version = c.nextVersion()
	c.changeLog = append(c.changeLog, uid)
	return nil
}

func (c *Connector) AddAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	return c.mutateMultiValued(objectClass, uid, attrs, true)
}

func (c *Connector) RemoveAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	return c.mutateMultiValued(objectClass, uid, attrs, false)
}

func (c *Connector) mutateMultiValued(objectClass, uid string, attrs map[string]model.AttributeValue, add bool) (model.ConnectorObject, error) {
	if objectClass != ObjectClassUser {
		return model.ConnectorObject{}, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.byUID[uid]
	if !ok || r.deleted {
		return model.ConnectorObject{}, fmt.Errorf("no such object %s/%s", objectClass, uid)
	}
	for name, v := range attrs {
		incoming, ok := v.(model.ListValue)
		if !ok {
			return model.ConnectorObject{}, fmt.Errorf("attribute %q must be a list for add/remove", name)
		}
		existing, _ := r.obj.Attributes[name].(model.ListValue)
		if add {
			r.obj.Attributes[name] = appendUnique(existing, incoming)
		} else {
			r.obj.Attributes[name] = removeValues(existing, incoming)
		}
	}
	r.version = c.nextVersion()
	c.changeLog = append(c.changeLog, uid)
	return r.obj, nil
}

func (c *Connector) nextVersion() int64 {
	c.seq++
	return c.seq
}

// Search implements list-mode search with simple in-memory offset paging
// and EQ/CONTAINS/STARTS_WITH/ENDS_WITH/IN/EXISTS filtering on "name" or
// any single-segment attribute path, sufficient to
// exercise the Facade's search dual-mode bridging and the filter package
// end to end without a real backend.
func (c *Connector) Search(ctx context.Context, objectClass string, f *filter.Node, opts model.Options) (connector.SearchResult, error) {
	if objectClass != ObjectClassUser {
		return connector.SearchResult{}, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	uids := make([]string, 0, len(c.byUID))
	for uid, r := range c.byUID {
		if r.deleted {
			continue
		}
		if f != nil && !matches(r.obj, f) {
			continue
		}
		uids = append(uids, uid)
	}
	c.mu.Unlock()
	sort.Strings(uids)

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = len(uids)
	}
	offset := opts.PagedResultsOffset
	if offset > len(uids) {
		offset = len(uids)
	}
	end := offset + pageSize
	if end > len(uids) {
		end = len(uids)
	}

	c.mu.Lock()
	results := make([]model.ConnectorObject, 0, end-offset)
	for _, uid := range uids[offset:end] {
		results = append(results, projected(c.byUID[uid].obj, opts.AttributesToGet))
	}
	c.mu.Unlock()

	var next *int
	if end < len(uids) {
		n := end
		next = &n
	}
	return connector.SearchResult{Results: results, NextOffset: next}, nil
}

// Sync returns every change recorded since token (by position in the
// change log). A nil/empty token means "from the beginning", a choice
// documented as connector-specific per spec.md §9.
func (c *Connector) Sync(ctx context.Context, objectClass string, token model.SyncToken, opts model.Options) (connector.SyncResult, error) {
	if objectClass != ObjectClassUser {
		return connector.SyncResult{}, fmt.Errorf("unknown object class %q", objectClass)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if token.Value != "" {
		n, err := strconv.Atoi(token.Value)
		if err != nil {
			return connector.SyncResult{}, fmt.Errorf("invalid sync token %q", token.Value)
		}
		start = n
	}
	if start > len(c.changeLog) {
		start = len(c.changeLog)
	}

	var changes []model.ConnectorObject
	seen := make(map[string]bool)
	for i := len(c.changeLog) - 1; i >= start; i-- {
		uid := c.changeLog[i]
		if seen[uid] {
			continue
		}
		seen[uid] = true
		r, ok := c.byUID[uid]
		if !ok {
			continue
		}
		if r.deleted {
			changes = append(changes, model.NewDeletedObject(objectClass, uid))
		} else {
			changes = append(changes, r.obj)
		}
	}

	return connector.SyncResult{
		Token:   model.SyncToken{Value: strconv.Itoa(len(c.changeLog))},
		Changes: changes,
	}, nil
}

func (c *Connector) RunScript(ctx context.Context, sc connector.ScriptContext) (any, error) {
	if sc.Language != "mock" {
		return nil, fmt.Errorf("mock connector only supports language %q, got %q", "mock", sc.Language)
	}
	return map[string]any{"echo": sc.Script, "params": sc.Params}, nil
}

func projected(obj model.ConnectorObject, attributesToGet []string) model.ConnectorObject {
	out := model.ConnectorObject{ObjectClass: obj.ObjectClass, UID: obj.UID, Name: obj.Name}
	if len(attributesToGet) == 0 {
		out.Attributes = cloneAttrs(obj.Attributes)
		return out
	}
	out.Attributes = make(map[string]model.AttributeValue, len(attributesToGet))
	for _, a := range attributesToGet {
		if v, ok := obj.Attributes[a]; ok {
			out.Attributes[a] = v
		}
	}
	return out
}

func cloneAttrs(in map[string]model.AttributeValue) map[string]model.AttributeValue {
	out := make(map[string]model.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func appendUnique(existing, incoming model.ListValue) model.ListValue {
	present := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		present[fmt.Sprint(v)] = struct{}{}
	}
	out := append(model.ListValue{}, existing...)
	for _, v := range incoming {
		if _, ok := present[fmt.Sprint(v)]; !ok {
			out = append(out, v)
			present[fmt.Sprint(v)] = struct{}{}
		}
	}
	return out
}

func removeValues(existing, toRemove model.ListValue) model.ListValue {
	remove := make(map[string]struct{}, len(toRemove))
	for _, v := range toRemove {
		remove[fmt.Sprint(v)] = struct{}{}
	}
	out := model.ListValue{}
	for _, v := range existing {
		if _, ok := remove[fmt.Sprint(v)]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func matches(obj model.ConnectorObject, n *filter.Node) bool {
	switch n.Kind {
	case filter.KindAnd:
		for _, c := range n.Children {
			if !matches(obj, c) {
				return false
			}
		}
		return true
	case filter.KindOr:
		for _, c := range n.Children {
			if matches(obj, c) {
				return true
			}
		}
		return false
	case filter.KindNot:
		return !matches(obj, n.Child)
	case filter.KindCmp:
		return matchesCmp(obj, n)
	default:
		return false
	}
}

func matchesCmp(obj model.ConnectorObject, n *filter.Node) bool {
	if len(n.Path) != 1 {
		return false
	}
	field := n.Path[0]
	var actual model.AttributeValue
	switch field {
	case "name":
		actual = model.StringValue(obj.Name)
	default:
		actual = obj.Attributes[field]
	}

	if n.CmpOp == filter.OpExists {
		return actual != nil
	}
	actualStr, ok := actual.(model.StringValue)
	if !ok {
		return false
	}
	if n.CmpOp == filter.OpIN {
		for _, v := range n.Values {
			if vs, ok := v.(model.StringValue); ok && vs == actualStr {
				return true
			}
		}
		return false
	}
	want, ok := n.Value.(model.StringValue)
	if !ok {
		return false
	}
	switch n.CmpOp {
	case filter.OpEQ:
		return actualStr == want
	case filter.OpContains:
		return containsSubstr(string(actualStr), string(want))
	case filter.OpStartsWith:
		return len(actualStr) >= len(want) && actualStr[:len(want)] == want
	case filter.OpEndsWith:
		return len(actualStr) >= len(want) && actualStr[len(actualStr)-len(want):] == want
	default:
		return false
	}
}

func containsSubstr(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

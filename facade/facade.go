// Package facade implements the Connector Facade from spec.md §4.4: the
// resilience-and-caching wrapper that adapts one connector instance's
// uniform operations with circuit breaking, request caching, and
// invalidation on writes.
package facade

import (
	"context"
	"time"

	"github.com/srallapally/openicf-connector-service/breaker"
	"github.com/srallapally/openicf-connector-service/cache"
	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
)

const (
	purposeSchema = "schema"
	purposeGet    = "get"

	schemaTTL = 5 * time.Minute
	getTTL    = 30 * time.Second
)

// Facade wraps exactly one connector.Instance with a private Breaker and a
// shared Cache (process-scoped, namespaced by instance id per spec.md §3's
// ownership rules).
type Facade struct {
	instanceID string
	impl       connector.Connector
	breaker    *breaker.Breaker
	cache      *cache.Cache
}

// New builds a Facade for impl, identified by instanceID for cache
// namespacing and breaker metrics. A nil breakerSettings pointer uses the
// spec.md §4.2 defaults.
func New(instanceID string, impl connector.Connector, c *cache.Cache, settings *breaker.Settings) *Facade {
	bs := breaker.Settings{InstanceID: instanceID}
	if settings != nil {
		bs = *settings
		bs.InstanceID = instanceID
	}
	return &Facade{
		instanceID: instanceID,
		impl:       impl,
		breaker:    breaker.New(bs),
		cache:      c,
	}
}

func (f *Facade) runBreaker(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return f.breaker.Call(ctx, fn)
}

// Test runs the impl's Tester capability through the breaker; if the impl
// does not implement Tester, it succeeds silently per spec.md §4.4.
func (f *Facade) Test(ctx context.Context) error {
	t, ok := f.impl.(connector.Tester)
	if !ok {
		return nil
	}
	_, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return nil, t.Test(ctx)
	})
	return err
}

func (f *Facade) schemaKey() string {
	return cache.Key(purposeSchema, f.instanceID)
}

// Schema returns the connector's schema, cached for schemaTTL. If the impl
// lacks SchemaProvider, an empty schema is returned per spec.md §4.4.
func (f *Facade) Schema(ctx context.Context) (model.Schema, error) {
	key := f.schemaKey()
	if v, ok := f.cache.Get(key); ok {
		return v.(model.Schema), nil
	}

	sp, ok := f.impl.(connector.SchemaProvider)
	if !ok {
		return model.EmptySchema(), nil
	}

	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return sp.Schema(ctx)
	})
	if err != nil {
		return model.Schema{}, err
	}
	schema := raw.(model.Schema)
	f.cache.SetTTL(key, schema, schemaTTL)
	return schema, nil
}

func (f *Facade) getKey(objectClass, uid string, opts model.Options) string {
	return cache.Key(purposeGet, f.instanceID, objectClass, uid, opts.SortedAttributesToGet())
}

// Get returns the object with the given uid, cached for getTTL. Only
// non-null results are cached, per spec.md §4.4.
func (f *Facade) Get(ctx context.Context, objectClass, uid string, opts model.Options) (*model.ConnectorObject, error) {
	g, ok := f.impl.(connector.Getter)
	if !ok {
		return nil, connerr.ErrNotSupported
	}

	key := f.getKey(objectClass, uid, opts)
	if v, ok := f.cache.Get(key); ok {
		obj := v.(model.ConnectorObject)
		return &obj, nil
	}

	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return g.Get(ctx, objectClass, uid, opts)
	})
	if err != nil {
		return nil, err
	}
	obj, _ := raw.(*model.ConnectorObject)
	if obj == nil {
		return nil, nil
	}
	f.cache.SetTTL(key, *obj, getTTL)
	return obj, nil
}

func (f *Facade) getPrefix(objectClass string, uid ...string) string {
	if len(uid) > 0 {
		return cache.Key(purposeGet, f.instanceID, objectClass, uid[0])
	}
	return cache.Key(purposeGet, f.instanceID, objectClass)
}

func (f *Facade) invalidateCreate(objectClass string) {
	f.cache.DeletePrefix(f.schemaKey())
	f.cache.DeletePrefix(f.getPrefix(objectClass))
}

func (f *Facade) invalidateWrite(objectClass, uid string) {
	f.cache.DeletePrefix(f.getPrefix(objectClass, uid))
}

// Create creates an object and invalidates the schema and get cache entries
// for objectClass, per spec.md §4.4.
func (f *Facade) Create(ctx context.Context, objectClass string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	c, ok := f.impl.(connector.Creator)
	if !ok {
		return model.ConnectorObject{}, connerr.ErrNotSupported
	}
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return c.Create(ctx, objectClass, attrs, opts)
	})
	if err != nil {
		return model.ConnectorObject{}, err
	}
	f.invalidateCreate(objectClass)
	return raw.(model.ConnectorObject), nil
}

// Update updates an object and invalidates its get cache entries.
func (f *Facade) Update(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	u, ok := f.impl.(connector.Updater)
	if !ok {
		return model.ConnectorObject{}, connerr.ErrNotSupported
	}
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return u.Update(ctx, objectClass, uid, attrs, opts)
	})
	if err != nil {
		return model.ConnectorObject{}, err
	}
	f.invalidateWrite(objectClass, uid)
	return raw.(model.ConnectorObject), nil
}

// Delete deletes an object and invalidates its get cache entries.
func (f *Facade) Delete(ctx context.Context, objectClass, uid string, opts model.Options) error {
	d, ok := f.impl.(connector.Deleter)
	if !ok {
		return connerr.ErrNotSupported
	}
	_, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return nil, d.Delete(ctx, objectClass, uid, opts)
	})
	if err != nil {
		return err
	}
	f.invalidateWrite(objectClass, uid)
	return nil
}

// AddAttributeValues adds values to a multi-valued attribute and invalidates
// the object's get cache entries.
func (f *Facade) AddAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	a, ok := f.impl.(connector.AttributeValueAdder)
	if !ok {
		return model.ConnectorObject{}, connerr.ErrNotSupported
	}
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return a.AddAttributeValues(ctx, objectClass, uid, attrs, opts)
	})
	if err != nil {
		return model.ConnectorObject{}, err
	}
	f.invalidateWrite(objectClass, uid)
	return raw.(model.ConnectorObject), nil
}

// RemoveAttributeValues removes values from a multi-valued attribute and
// invalidates the object's get cache entries.
func (f *Facade) RemoveAttributeValues(ctx context.Context, objectClass, uid string, attrs map[string]model.AttributeValue, opts model.Options) (model.ConnectorObject, error) {
	r, ok := f.impl.(connector.AttributeValueRemover)
	if !ok {
		return model.ConnectorObject{}, connerr.ErrNotSupported
	}
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return r.RemoveAttributeValues(ctx, objectClass, uid, attrs, opts)
	})
	if err != nil {
		return model.ConnectorObject{}, err
	}
	f.invalidateWrite(objectClass, uid)
	return raw.(model.ConnectorObject), nil
}

// ScriptOnConnector runs a caller-opaque script through the breaker.
func (f *Facade) ScriptOnConnector(ctx context.Context, sc connector.ScriptContext) (any, error) {
	s, ok := f.impl.(connector.ScriptRunner)
	if !ok {
		return nil, connerr.ErrNotSupported
	}
	return f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return s.RunScript(ctx, sc)
	})
}

// Sync runs delta sync through the breaker; never cached, per spec.md §4.4.
func (f *Facade) Sync(ctx context.Context, objectClass string, token model.SyncToken, opts model.Options) (connector.SyncResult, error) {
	s, ok := f.impl.(connector.Syncer)
	if !ok {
		return connector.SyncResult{}, connerr.ErrNotSupported
	}
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return s.Sync(ctx, objectClass, token, opts)
	})
	if err != nil {
		return connector.SyncResult{}, err
	}
	return raw.(connector.SyncResult), nil
}

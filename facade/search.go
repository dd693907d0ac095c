package facade

import (
	"context"
	"strconv"

	"github.com/srallapally/openicf-connector-service/connector"
	"github.com/srallapally/openicf-connector-service/connerr"
	"github.com/srallapally/openicf-connector-service/filter"
	"github.com/srallapally/openicf-connector-service/model"
)

// Search runs list-mode search, never cached per spec.md §4.4. Per the
// resolved Open Question in SPEC_FULL.md §9 ("list-primary with a
// documented streaming bridge"), if the impl only implements StreamSearcher,
// Search adapts it by accumulating every streamed object into a buffer.
func (f *Facade) Search(ctx context.Context, objectClass string, node *filter.Node, opts model.Options) (connector.SearchResult, error) {
	if ls, ok := f.impl.(connector.ListSearcher); ok {
		raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
			return ls.Search(ctx, objectClass, node, opts)
		})
		if err != nil {
			return connector.SearchResult{}, err
		}
		return raw.(connector.SearchResult), nil
	}

	ss, ok := f.impl.(connector.StreamSearcher)
	if !ok {
		return connector.SearchResult{}, connerr.ErrNotSupported
	}

	var buffered []model.ConnectorObject
	raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
		return ss.SearchStream(ctx, objectClass, node, opts, func(obj model.ConnectorObject) bool {
			buffered = append(buffered, obj)
			return true
		})
	})
	if err != nil {
		return connector.SearchResult{}, err
	}
	_ = raw.(connector.StreamResult) // cookie/remaining discarded: list mode reports nextOffset instead
	return connector.SearchResult{Results: buffered}, nil
}

// SearchStream runs streaming-mode search, delivering objects to h as pages
// are fetched; h returning false cancels promptly within the current page
// (spec.md §5). If the impl only implements ListSearcher, SearchStream
// bridges by paging the list form via pagedResultsOffset and delivering each
// page's objects to h until h returns false or a page returns fewer objects
// than requested (end of results).
func (f *Facade) SearchStream(ctx context.Context, objectClass string, node *filter.Node, opts model.Options, h connector.Handler) (connector.StreamResult, error) {
	if ss, ok := f.impl.(connector.StreamSearcher); ok {
		raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
			return ss.SearchStream(ctx, objectClass, node, opts, h)
		})
		if err != nil {
			return connector.StreamResult{}, err
		}
		return raw.(connector.StreamResult), nil
	}

	ls, ok := f.impl.(connector.ListSearcher)
	if !ok {
		return connector.StreamResult{}, connerr.ErrNotSupported
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	offset := opts.PagedResultsOffset
	var lastCookie string

	for {
		pageOpts := opts
		pageOpts.PageSize = pageSize
		pageOpts.PagedResultsOffset = offset

		raw, err := f.runBreaker(ctx, func(ctx context.Context) (any, error) {
			return ls.Search(ctx, objectClass, node, pageOpts)
		})
		if err != nil {
			return connector.StreamResult{}, err
		}
		page := raw.(connector.SearchResult)

		for _, obj := range page.Results {
			if !h(obj) {
				return connector.StreamResult{PagedResultsCookie: lastCookie}, nil
			}
		}

		if page.NextOffset == nil || len(page.Results) < pageSize {
			return connector.StreamResult{}, nil
		}
		offset = *page.NextOffset
		lastCookie = strconv.Itoa(offset)
	}
}

// Package editor owns site schemas on behalf of callers. It loads a site's
// tree from a Store, applies mutations through a site.Engine, persists the
// result, and hands out immutable trees.
//
// One Editor serializes all writers; readers get immutable *site.Tree values
// that later mutations never change.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mesh-intelligence/canvas/pkg/elements"
	"github.com/mesh-intelligence/canvas/pkg/site"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// Store persists sites. internal/sqlite.Backend implements it.
type Store interface {
	CreateSite(ctx context.Context, s types.Site) (types.Site, error)
	GetSite(ctx context.Context, siteID string) (types.Site, error)
	ListSites(ctx context.Context, tenantID string) ([]types.Site, error)
	LoadSite(ctx context.Context, siteID string) (*site.Tree, error)
	SaveSite(ctx context.Context, t *site.Tree) error
	DeleteSite(ctx context.Context, siteID string) error
}

// Editor is the single writer for the sites in its Store.
type Editor struct {
	mu     sync.Mutex
	engine *site.Engine
	store  Store
	logger *slog.Logger
	trees  map[string]*site.Tree // last saved tree per site
}

// Option configures an Editor.
type Option func(*Editor)

// WithEngine sets the mutation engine. The default uses elements.Default().
func WithEngine(e *site.Engine) Option {
	return func(ed *Editor) {
		if e != nil {
			ed.engine = e
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ed *Editor) {
		if l != nil {
			ed.logger = l
		}
	}
}

// New returns an Editor persisting to store.
func New(store Store, opts ...Option) *Editor {
	ed := &Editor{
		store:  store,
		logger: slog.Default(),
		trees:  make(map[string]*site.Tree),
	}
	for _, opt := range opts {
		opt(ed)
	}
	if ed.engine == nil {
		ed.engine = site.NewEngine(nil)
	}
	return ed
}

// Registry returns the element registry mutations resolve against.
func (ed *Editor) Registry() *elements.Registry {
	return ed.engine.Registry()
}

// Engine returns the mutation engine, for read views such as EffectiveProps.
func (ed *Editor) Engine() *site.Engine {
	return ed.engine
}

// CreateSite stores a new, empty site and returns its tree.
func (ed *Editor) CreateSite(ctx context.Context, s types.Site) (*site.Tree, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	created, err := ed.store.CreateSite(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	t := site.NewTree(created)
	ed.trees[created.ID] = t
	return t, nil
}

// ListSites returns the sites of a tenant. An empty tenant lists all sites.
func (ed *Editor) ListSites(ctx context.Context, tenantID string) ([]types.Site, error) {
	return ed.store.ListSites(ctx, tenantID)
}

// Tree returns the current tree of a site.
func (ed *Editor) Tree(ctx context.Context, siteID string) (*site.Tree, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.loadLocked(ctx, siteID)
}

// DeleteSite removes a site and its schema.
func (ed *Editor) DeleteSite(ctx context.Context, siteID string) error {
	if err := checkIDs("site", siteID); err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if err := ed.store.DeleteSite(ctx, siteID); err != nil {
		return fmt.Errorf("delete site %s: %w", siteID, err)
	}
	delete(ed.trees, siteID)
	ed.logger.Info("site deleted", "site_id", siteID)
	return nil
}

// Import stores a whole snapshot, replacing any site with the same ID.
// Every element's props must decode into its type's typed record under the
// editor's registry.
func (ed *Editor) Import(ctx context.Context, snap types.Snapshot) (*site.Tree, error) {
	t, err := site.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("import site: %w", err)
	}
	for _, el := range snap.Elements {
		if _, err := ed.engine.Registry().Typed(el.Type, el.Props); err != nil {
			return nil, fmt.Errorf("import element %s: %w", el.ID, err)
		}
	}

	ed.mu.Lock()
	defer ed.mu.Unlock()

	if err := ed.store.SaveSite(ctx, t); err != nil {
		return nil, fmt.Errorf("import site %s: %w", snap.Site.ID, err)
	}
	ed.trees[snap.Site.ID] = t
	rows, cols, els := t.Counts()
	ed.logger.Info("site imported", "site_id", snap.Site.ID, "rows", rows, "columns", cols, "elements", els)
	return t, nil
}

// AddRow appends a row to a site.
func (ed *Editor) AddRow(ctx context.Context, siteID string) (*site.Tree, types.Row, error) {
	var row types.Row
	t, err := ed.mutate(ctx, siteID, "add row", func(t *site.Tree) (*site.Tree, error) {
		next, r, err := ed.engine.AddRow(t, siteID)
		row = r
		return next, err
	})
	return t, row, err
}

// AddColumn appends a column of the given width to a row of a site.
func (ed *Editor) AddColumn(ctx context.Context, siteID, rowID string, width int) (*site.Tree, types.Column, error) {
	if err := checkIDs("row", rowID); err != nil {
		return nil, types.Column{}, fmt.Errorf("add column: %w", err)
	}
	var col types.Column
	t, err := ed.mutate(ctx, siteID, "add column", func(t *site.Tree) (*site.Tree, error) {
		next, c, err := ed.engine.AddColumn(t, rowID, width)
		col = c
		return next, err
	})
	return t, col, err
}

// AddElement appends an element of type et to a column of a site.
func (ed *Editor) AddElement(ctx context.Context, siteID, colID string, et types.ElementType) (*site.Tree, types.Element, error) {
	if err := checkIDs("column", colID); err != nil {
		return nil, types.Element{}, fmt.Errorf("add element: %w", err)
	}
	var el types.Element
	t, err := ed.mutate(ctx, siteID, "add element", func(t *site.Tree) (*site.Tree, error) {
		next, e, err := ed.engine.AddElement(t, colID, et)
		el = e
		return next, err
	})
	return t, el, err
}

// UpdateElement merges partial into an element's overrides.
func (ed *Editor) UpdateElement(ctx context.Context, siteID, elementID string, partial map[string]any) (*site.Tree, types.Element, error) {
	if err := checkIDs("element", elementID); err != nil {
		return nil, types.Element{}, fmt.Errorf("update element: %w", err)
	}
	var el types.Element
	t, err := ed.mutate(ctx, siteID, "update element", func(t *site.Tree) (*site.Tree, error) {
		next, e, err := ed.engine.UpdateElement(t, elementID, partial)
		el = e
		return next, err
	})
	return t, el, err
}

// DeleteElement removes an element. Deleting an unknown element is a no-op
// that reports false and stores nothing.
func (ed *Editor) DeleteElement(ctx context.Context, siteID, elementID string) (*site.Tree, bool, error) {
	if err := checkIDs("element", elementID); err != nil {
		return nil, false, fmt.Errorf("delete element: %w", err)
	}
	var removed bool
	t, err := ed.mutate(ctx, siteID, "delete element", func(t *site.Tree) (*site.Tree, error) {
		next, ok, err := ed.engine.DeleteElement(t, elementID)
		removed = ok
		return next, err
	})
	return t, removed, err
}

// UpdateSite applies a metadata patch.
func (ed *Editor) UpdateSite(ctx context.Context, siteID string, patch types.SitePatch) (*site.Tree, error) {
	return ed.mutate(ctx, siteID, "update site", func(t *site.Tree) (*site.Tree, error) {
		return ed.engine.UpdateSite(t, siteID, patch)
	})
}

// SetPublished sets the published flag of a site.
func (ed *Editor) SetPublished(ctx context.Context, siteID string, published bool) (*site.Tree, error) {
	return ed.mutate(ctx, siteID, "set published", func(t *site.Tree) (*site.Tree, error) {
		return ed.engine.SetPublished(t, siteID, published)
	})
}

// mutate runs fn on the current tree and saves the result. The cached tree
// only advances after the store accepts the new one. When fn returns its
// input unchanged nothing is saved.
func (ed *Editor) mutate(ctx context.Context, siteID, op string, fn func(*site.Tree) (*site.Tree, error)) (*site.Tree, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	cur, err := ed.loadLocked(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	next, err := fn(cur)
	if err != nil {
		return cur, fmt.Errorf("%s: %w", op, err)
	}
	if next == cur {
		return cur, nil
	}
	if err := ed.store.SaveSite(ctx, next); err != nil {
		ed.logger.Error("save failed", "op", op, "site_id", siteID, "error", err)
		return cur, fmt.Errorf("%s: save site %s: %w", op, siteID, err)
	}
	ed.trees[siteID] = next
	ed.logger.Debug("site mutated", "op", op, "site_id", siteID)
	return next, nil
}

func (ed *Editor) loadLocked(ctx context.Context, siteID string) (*site.Tree, error) {
	if err := checkIDs("site", siteID); err != nil {
		return nil, err
	}
	if t, ok := ed.trees[siteID]; ok {
		return t, nil
	}
	t, err := ed.store.LoadSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	ed.trees[siteID] = t
	return t, nil
}

// checkIDs rejects blank node IDs before any lookup.
func checkIDs(kind string, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty %s ID", types.ErrInvalidID, kind)
		}
	}
	return nil
}

package site

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/canvas/pkg/elements"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

var errNilTree = fmt.Errorf("nil tree: %w", types.ErrSiteNotFound)

// Engine applies mutations to trees. It holds no tree state of its own and
// performs no I/O, so one Engine may serve any number of callers.
type Engine struct {
	registry *elements.Registry
	newID    func() string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the UUID v7 generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock replaces time.Now for Site.UpdatedAt stamps.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// NewEngine returns an Engine backed by registry. A nil registry means
// elements.Default().
func NewEngine(registry *elements.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = elements.Default()
	}
	e := &Engine{
		registry: registry,
		newID:    NewID,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the element registry the engine resolves against.
func (e *Engine) Registry() *elements.Registry {
	return e.registry
}

// AddRow appends a row to the site. Its order is one past the highest
// existing row order, or 0 for the first row.
func (e *Engine) AddRow(t *Tree, siteID string) (*Tree, types.Row, error) {
	if t == nil || t.site.ID != siteID {
		return t, types.Row{}, fmt.Errorf("add row to site %q: %w", siteID, types.ErrSiteNotFound)
	}
	order := 0
	for r := range t.RowsOf(siteID) {
		order = r.Order + 1
	}
	row := types.Row{ID: e.newID(), SiteID: siteID, Order: order}

	next := t.clone()
	next.rows = append(next.rows, row)
	next.touch(e.now())
	return next, row, nil
}

// AddColumn appends a column of the given width to a row.
func (e *Engine) AddColumn(t *Tree, rowID string, width int) (*Tree, types.Column, error) {
	if t == nil {
		return nil, types.Column{}, errNilTree
	}
	if _, ok := t.Row(rowID); !ok {
		return t, types.Column{}, fmt.Errorf("add column to row %q: %w", rowID, types.ErrRowNotFound)
	}
	if !types.ValidWidth(width) {
		return t, types.Column{}, fmt.Errorf("add column with width %d: %w", width, types.ErrInvalidWidth)
	}
	order := 0
	for c := range t.ColumnsOf(rowID) {
		order = c.Order + 1
	}
	col := types.Column{ID: e.newID(), RowID: rowID, Width: width, Order: order}

	next := t.clone()
	next.columns = append(next.columns, col)
	next.touch(e.now())
	return next, col, nil
}

// AddElement appends an element of type et to a column. The element starts
// with no stored overrides; its effective props are the type defaults.
func (e *Engine) AddElement(t *Tree, colID string, et types.ElementType) (*Tree, types.Element, error) {
	if t == nil {
		return nil, types.Element{}, errNilTree
	}
	if _, ok := t.Column(colID); !ok {
		return t, types.Element{}, fmt.Errorf("add element to column %q: %w", colID, types.ErrColumnNotFound)
	}
	if _, err := e.registry.Lookup(et); err != nil {
		return t, types.Element{}, fmt.Errorf("add element: %w", err)
	}
	order := 0
	for el := range t.ElementsOf(colID) {
		order = el.Order + 1
	}
	el := types.Element{
		ID:    e.newID(),
		ColID: colID,
		Type:  et,
		Props: map[string]any{},
		Order: order,
	}

	next := t.clone()
	next.elements = append(next.elements, el)
	next.touch(e.now())
	el.Props = map[string]any{} // detach from the stored map
	return next, el, nil
}

// UpdateElement merges partial into the element's stored props. Top-level
// keys replace, mergeable keys merge one level deep, and nil values remove
// the stored override. The merged props must still decode into the type's
// typed record, otherwise the call fails with ErrInvalidProps.
func (e *Engine) UpdateElement(t *Tree, elementID string, partial map[string]any) (*Tree, types.Element, error) {
	if t == nil {
		return nil, types.Element{}, errNilTree
	}
	i := t.elementIndex(elementID)
	if i < 0 {
		return t, types.Element{}, fmt.Errorf("update element %q: %w", elementID, types.ErrElementNotFound)
	}
	cur := t.elements[i]

	merged, err := e.registry.Merge(cur.Type, cur.Props, partial)
	if err != nil {
		return t, types.Element{}, fmt.Errorf("update element %q: %w", elementID, err)
	}
	if _, err := e.registry.Typed(cur.Type, merged); err != nil {
		return t, types.Element{}, fmt.Errorf("update element %q: %w", elementID, err)
	}

	next := t.clone()
	next.elements[i].Props = merged
	next.touch(e.now())

	out := next.elements[i]
	out.Props = elements.Clone(merged)
	return next, out, nil
}

// DeleteElement removes an element from its column. Sibling orders are left
// as they are. Deleting a missing element is a no-op: the same tree is
// returned with removed == false and a nil error.
func (e *Engine) DeleteElement(t *Tree, elementID string) (next *Tree, removed bool, err error) {
	if t == nil {
		return nil, false, errNilTree
	}
	i := t.elementIndex(elementID)
	if i < 0 {
		return t, false, nil
	}
	next = t.clone()
	next.elements = append(next.elements[:i], next.elements[i+1:]...)
	next.touch(e.now())
	return next, true, nil
}

// UpdateSite applies a metadata patch to the site record.
func (e *Engine) UpdateSite(t *Tree, siteID string, patch types.SitePatch) (*Tree, error) {
	if t == nil || t.site.ID != siteID {
		return t, fmt.Errorf("update site %q: %w", siteID, types.ErrSiteNotFound)
	}
	next := t.clone()
	patch.Apply(&next.site)
	next.touch(e.now())
	return next, nil
}

// SetPublished sets the site's publish flag.
func (e *Engine) SetPublished(t *Tree, siteID string, published bool) (*Tree, error) {
	if t == nil || t.site.ID != siteID {
		return t, fmt.Errorf("publish site %q: %w", siteID, types.ErrSiteNotFound)
	}
	next := t.clone()
	next.site.Published = published
	next.touch(e.now())
	return next, nil
}

// EffectiveProps returns the element's type defaults merged with its stored
// overrides.
func (e *Engine) EffectiveProps(t *Tree, elementID string) (map[string]any, error) {
	el, ok := t.Element(elementID)
	if !ok {
		return nil, fmt.Errorf("read element %q: %w", elementID, types.ErrElementNotFound)
	}
	return e.registry.Resolve(el.Type, el.Props)
}

// TypedProps returns the element's effective props as its typed record.
func (e *Engine) TypedProps(t *Tree, elementID string) (elements.Props, error) {
	el, ok := t.Element(elementID)
	if !ok {
		return nil, fmt.Errorf("read element %q: %w", elementID, types.ErrElementNotFound)
	}
	return e.registry.Typed(el.Type, el.Props)
}

func (t *Tree) touch(now time.Time) {
	t.site.UpdatedAt = now
}

// NewID returns a new UUID v7 for sites and nodes, falling back to v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

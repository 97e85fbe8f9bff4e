package site

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/mesh-intelligence/canvas/pkg/elements"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// Tree is one site's rows, columns, and elements.
type Tree struct {
	site     types.Site
	rows     []types.Row
	columns  []types.Column
	elements []types.Element
}

// NewTree returns an empty tree for s.
func NewTree(s types.Site) *Tree {
	return &Tree{site: s}
}

// FromSnapshot builds a tree from a flat snapshot and checks every
// structural invariant. The snapshot is copied.
func FromSnapshot(s types.Snapshot) (*Tree, error) {
	t := &Tree{
		site:     s.Site,
		rows:     slices.Clone(s.Rows),
		columns:  slices.Clone(s.Columns),
		elements: cloneElements(s.Elements),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Snapshot returns the tree as a flat snapshot, sorted parent-first and by
// order within each sibling group. Slices are never nil.
func (t *Tree) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		Site:     t.site,
		Rows:     make([]types.Row, 0, len(t.rows)),
		Columns:  make([]types.Column, 0, len(t.columns)),
		Elements: make([]types.Element, 0, len(t.elements)),
	}
	for r := range t.RowsOf(t.site.ID) {
		snap.Rows = append(snap.Rows, r)
		for c := range t.ColumnsOf(r.ID) {
			snap.Columns = append(snap.Columns, c)
			for e := range t.ElementsOf(c.ID) {
				snap.Elements = append(snap.Elements, e)
			}
		}
	}
	return snap
}

// Site returns the site record.
func (t *Tree) Site() types.Site {
	return t.site
}

// Counts returns the number of rows, columns, and elements.
func (t *Tree) Counts() (rows, columns, elements int) {
	return len(t.rows), len(t.columns), len(t.elements)
}

// RowsOf yields the rows of siteID by ascending order.
func (t *Tree) RowsOf(siteID string) iter.Seq[types.Row] {
	return func(yield func(types.Row) bool) {
		rows := make([]types.Row, 0, len(t.rows))
		for _, r := range t.rows {
			if r.SiteID == siteID {
				rows = append(rows, r)
			}
		}
		slices.SortFunc(rows, func(a, b types.Row) int {
			return byOrder(a.Order, b.Order, a.ID, b.ID)
		})
		for _, r := range rows {
			if !yield(r) {
				return
			}
		}
	}
}

// ColumnsOf yields the columns of rowID by ascending order.
func (t *Tree) ColumnsOf(rowID string) iter.Seq[types.Column] {
	return func(yield func(types.Column) bool) {
		cols := make([]types.Column, 0)
		for _, c := range t.columns {
			if c.RowID == rowID {
				cols = append(cols, c)
			}
		}
		slices.SortFunc(cols, func(a, b types.Column) int {
			return byOrder(a.Order, b.Order, a.ID, b.ID)
		})
		for _, c := range cols {
			if !yield(c) {
				return
			}
		}
	}
}

// ElementsOf yields the elements of colID by ascending order. Each element
// carries its own copy of the stored props.
func (t *Tree) ElementsOf(colID string) iter.Seq[types.Element] {
	return func(yield func(types.Element) bool) {
		els := make([]types.Element, 0)
		for _, e := range t.elements {
			if e.ColID == colID {
				els = append(els, e)
			}
		}
		slices.SortFunc(els, func(a, b types.Element) int {
			return byOrder(a.Order, b.Order, a.ID, b.ID)
		})
		for _, e := range els {
			e.Props = elements.Clone(e.Props)
			if !yield(e) {
				return
			}
		}
	}
}

// Row returns the row with the given ID.
func (t *Tree) Row(id string) (types.Row, bool) {
	if t == nil {
		return types.Row{}, false
	}
	i := slices.IndexFunc(t.rows, func(r types.Row) bool { return r.ID == id })
	if i < 0 {
		return types.Row{}, false
	}
	return t.rows[i], true
}

// Column returns the column with the given ID.
func (t *Tree) Column(id string) (types.Column, bool) {
	if t == nil {
		return types.Column{}, false
	}
	i := slices.IndexFunc(t.columns, func(c types.Column) bool { return c.ID == id })
	if i < 0 {
		return types.Column{}, false
	}
	return t.columns[i], true
}

// Element returns the element with the given ID.
func (t *Tree) Element(id string) (types.Element, bool) {
	i := t.elementIndex(id)
	if i < 0 {
		return types.Element{}, false
	}
	e := t.elements[i]
	e.Props = elements.Clone(e.Props)
	return e, true
}

func (t *Tree) elementIndex(id string) int {
	if t == nil {
		return -1
	}
	return slices.IndexFunc(t.elements, func(e types.Element) bool { return e.ID == id })
}

// Validate checks the structural invariants: non-empty unique IDs, every
// node's parent exists, widths lie in the grid, sibling orders are unique,
// element types are known, and every element's props decode into its typed
// record. Errors wrap ErrInvalidSnapshot.
func (t *Tree) Validate() error {
	if t.site.ID == "" {
		return fmt.Errorf("%w: site has no ID", types.ErrInvalidSnapshot)
	}

	ids := make(map[string]bool)
	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s with empty ID", types.ErrInvalidSnapshot, kind)
		}
		if ids[id] {
			return fmt.Errorf("%w: duplicate ID %s", types.ErrInvalidSnapshot, id)
		}
		ids[id] = true
		return nil
	}
	if err := claim("site", t.site.ID); err != nil {
		return err
	}

	type slot struct {
		parent string
		order  int
	}
	rowIDs := make(map[string]bool, len(t.rows))
	rowOrders := make(map[slot]bool, len(t.rows))
	for _, r := range t.rows {
		if err := claim("row", r.ID); err != nil {
			return err
		}
		if r.SiteID != t.site.ID {
			return fmt.Errorf("%w: row %s belongs to site %q", types.ErrInvalidSnapshot, r.ID, r.SiteID)
		}
		if rowOrders[slot{r.SiteID, r.Order}] {
			return fmt.Errorf("%w: duplicate row order %d", types.ErrInvalidSnapshot, r.Order)
		}
		rowOrders[slot{r.SiteID, r.Order}] = true
		rowIDs[r.ID] = true
	}

	colIDs := make(map[string]bool, len(t.columns))
	colOrders := make(map[slot]bool, len(t.columns))
	for _, c := range t.columns {
		if err := claim("column", c.ID); err != nil {
			return err
		}
		if !rowIDs[c.RowID] {
			return fmt.Errorf("%w: column %s references missing row %q", types.ErrInvalidSnapshot, c.ID, c.RowID)
		}
		if !types.ValidWidth(c.Width) {
			return fmt.Errorf("%w: column %s width %d", types.ErrInvalidSnapshot, c.ID, c.Width)
		}
		if colOrders[slot{c.RowID, c.Order}] {
			return fmt.Errorf("%w: duplicate column order %d in row %s", types.ErrInvalidSnapshot, c.Order, c.RowID)
		}
		colOrders[slot{c.RowID, c.Order}] = true
		colIDs[c.ID] = true
	}

	elOrders := make(map[slot]bool, len(t.elements))
	for _, e := range t.elements {
		if err := claim("element", e.ID); err != nil {
			return err
		}
		if !colIDs[e.ColID] {
			return fmt.Errorf("%w: element %s references missing column %q", types.ErrInvalidSnapshot, e.ID, e.ColID)
		}
		if !types.IsValidElementType(e.Type) {
			return fmt.Errorf("%w: element %s has unknown type %q", types.ErrInvalidSnapshot, e.ID, e.Type)
		}
		if _, err := elements.Default().Typed(e.Type, e.Props); err != nil {
			return fmt.Errorf("%w: element %s: %v", types.ErrInvalidSnapshot, e.ID, err)
		}
		if elOrders[slot{e.ColID, e.Order}] {
			return fmt.Errorf("%w: duplicate element order %d in column %s", types.ErrInvalidSnapshot, e.Order, e.ColID)
		}
		elOrders[slot{e.ColID, e.Order}] = true
	}
	return nil
}

// clone returns a copy of t that shares no mutable state with it.
func (t *Tree) clone() *Tree {
	return &Tree{
		site:     t.site,
		rows:     slices.Clone(t.rows),
		columns:  slices.Clone(t.columns),
		elements: cloneElements(t.elements),
	}
}

func cloneElements(in []types.Element) []types.Element {
	out := make([]types.Element, len(in))
	for i, e := range in {
		e.Props = elements.Clone(e.Props)
		out[i] = e
	}
	return out
}

func byOrder(a, b int, idA, idB string) int {
	if c := cmp.Compare(a, b); c != 0 {
		return c
	}
	return cmp.Compare(idA, idB)
}

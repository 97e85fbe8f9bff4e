package httpapi

import (
	"net/http"

	"github.com/mesh-intelligence/canvas/pkg/site"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// TreeView is the nested form of a site for renderers: rows hold columns,
// columns hold elements, and each element carries its effective props.
type TreeView struct {
	Site types.Site `json:"site"`
	Rows []RowView  `json:"rows"`
}

// RowView is one row and its columns in order.
type RowView struct {
	ID      string       `json:"id"`
	Order   int          `json:"order"`
	Columns []ColumnView `json:"columns"`
}

// ColumnView is one column and its elements in order.
type ColumnView struct {
	ID       string        `json:"id"`
	Width    int           `json:"width"`
	Order    int           `json:"order"`
	Elements []ElementView `json:"elements"`
}

// ElementView carries an element's stored overrides, its effective props,
// and the sanitized HTML of any markup-bearing props.
type ElementView struct {
	ID        string            `json:"id"`
	ColID     string            `json:"colId"`
	Type      types.ElementType `json:"type"`
	Order     int               `json:"order"`
	Overrides map[string]any    `json:"overrides"`
	Props     map[string]any    `json:"props"`
	Markup    map[string]string `json:"markup,omitempty"`
}

// BuildTreeView resolves every element of t against eng's registry.
func BuildTreeView(eng *site.Engine, t *site.Tree) (TreeView, error) {
	s := t.Site()
	view := TreeView{Site: s, Rows: []RowView{}}
	for r := range t.RowsOf(s.ID) {
		rv := RowView{ID: r.ID, Order: r.Order, Columns: []ColumnView{}}
		for c := range t.ColumnsOf(r.ID) {
			cv := ColumnView{ID: c.ID, Width: c.Width, Order: c.Order, Elements: []ElementView{}}
			for e := range t.ElementsOf(c.ID) {
				ev, err := elementView(eng, t, e)
				if err != nil {
					return TreeView{}, err
				}
				cv.Elements = append(cv.Elements, ev)
			}
			rv.Columns = append(rv.Columns, cv)
		}
		view.Rows = append(view.Rows, rv)
	}
	return view, nil
}

func elementView(eng *site.Engine, t *site.Tree, e types.Element) (ElementView, error) {
	props, err := eng.EffectiveProps(t, e.ID)
	if err != nil {
		return ElementView{}, err
	}
	markup, err := eng.Registry().Markup(e.Type, props)
	if err != nil {
		return ElementView{}, err
	}
	overrides := e.Props
	if overrides == nil {
		overrides = map[string]any{}
	}
	return ElementView{
		ID: e.ID, ColID: e.ColID, Type: e.Type, Order: e.Order,
		Overrides: overrides, Props: props, Markup: markup,
	}, nil
}

func (s *Server) writeElement(w http.ResponseWriter, r *http.Request, code int, t *site.Tree, id string) {
	e, ok := t.Element(id)
	if !ok {
		s.writeError(w, r, types.ErrElementNotFound)
		return
	}
	ev, err := elementView(s.editor.Engine(), t, e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, code, ev)
}

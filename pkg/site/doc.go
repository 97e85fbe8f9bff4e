// Package site holds the schema tree of one site and the mutation engine
// that transforms it.
//
// A *Tree is an immutable snapshot. Engine operations take a tree and
// return a new one; the input is never modified, so a failed operation
// leaves the caller holding the prior, still valid snapshot.
//
//	eng := site.NewEngine(elements.Default())
//	t := site.NewTree(types.Site{ID: "s1", TenantID: "acme"})
//	t, row, err := eng.AddRow(t, "s1")
//	t, col, err = eng.AddColumn(t, row.ID, 6)
//	t, el, err := eng.AddElement(t, col.ID, types.ElementText)
//	for el := range t.ElementsOf(col.ID) { ... }
package site

package site

import (
	"fmt"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine returns an engine with sequential IDs (n1, n2, ...) and a
// fixed clock.
func newTestEngine() *Engine {
	n := 0
	return NewEngine(nil,
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("n%d", n)
		}),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func newTestTree() *Tree {
	return NewTree(types.Site{ID: "site1", TenantID: "acme", Title: "Feedback"})
}

func collect[T any](seq iter.Seq[T]) []T {
	return slices.Collect(seq)
}

// mustBuild creates a tree with one row, one 6-wide column, and one Text
// element.
func mustBuild(t *testing.T, eng *Engine) (*Tree, types.Row, types.Column, types.Element) {
	t.Helper()
	tree := newTestTree()
	tree, row, err := eng.AddRow(tree, "site1")
	require.NoError(t, err)
	tree, col, err := eng.AddColumn(tree, row.ID, 6)
	require.NoError(t, err)
	tree, el, err := eng.AddElement(tree, col.ID, types.ElementText)
	require.NoError(t, err)
	return tree, row, col, el
}

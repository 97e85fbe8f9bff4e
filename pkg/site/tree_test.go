package site

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

func sampleSnapshot() types.Snapshot {
	return types.Snapshot{
		Site: types.Site{ID: "s1", TenantID: "acme", Title: "Home"},
		Rows: []types.Row{
			{ID: "r2", SiteID: "s1", Order: 1},
			{ID: "r1", SiteID: "s1", Order: 0},
		},
		Columns: []types.Column{
			{ID: "c2", RowID: "r1", Width: 4, Order: 3},
			{ID: "c1", RowID: "r1", Width: 8, Order: 0},
			{ID: "c3", RowID: "r2", Width: 12, Order: 0},
		},
		Elements: []types.Element{
			{ID: "e2", ColID: "c1", Type: types.ElementButton, Order: 2, Props: map[string]any{"label": "Go"}},
			{ID: "e1", ColID: "c1", Type: types.ElementLogo, Order: 1, Props: map[string]any{}},
			{ID: "e3", ColID: "c3", Type: types.ElementText, Order: 0, Props: map[string]any{"content": "Hi"}},
		},
	}
}

func TestReadViewsOrder(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)

	var rows []string
	for r := range tree.RowsOf("s1") {
		rows = append(rows, r.ID)
	}
	assert.Equal(t, []string{"r1", "r2"}, rows)

	var cols []string
	for c := range tree.ColumnsOf("r1") {
		cols = append(cols, c.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, cols)

	var els []string
	for e := range tree.ElementsOf("c1") {
		els = append(els, e.ID)
	}
	assert.Equal(t, []string{"e1", "e2"}, els)

	assert.Empty(t, collect(tree.RowsOf("other-site")))
	assert.Empty(t, collect(tree.ColumnsOf("missing")))
	assert.Empty(t, collect(tree.ElementsOf("c2")))
}

func TestReadViewsRestartable(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)

	seq := tree.ElementsOf("c1")
	first := collect(seq)
	second := collect(seq)
	assert.Equal(t, first, second)

	// Stopping early is allowed.
	n := 0
	for range tree.ColumnsOf("r1") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestReadViewsReturnCopies(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)

	for e := range tree.ElementsOf("c1") {
		e.Props["label"] = "mutated"
	}
	el, ok := tree.Element("e2")
	require.True(t, ok)
	assert.Equal(t, "Go", el.Props["label"])

	el.Props["label"] = "mutated again"
	el, _ = tree.Element("e2")
	assert.Equal(t, "Go", el.Props["label"])
}

func TestReadViewsTieBreakByID(t *testing.T) {
	tree := &Tree{
		site: types.Site{ID: "s1"},
		rows: []types.Row{
			{ID: "b", SiteID: "s1", Order: 0},
			{ID: "a", SiteID: "s1", Order: 0},
		},
	}
	var ids []string
	for r := range tree.RowsOf("s1") {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFromSnapshotCopiesInput(t *testing.T) {
	snap := sampleSnapshot()
	tree, err := FromSnapshot(snap)
	require.NoError(t, err)

	snap.Rows[0].Order = 99
	snap.Elements[0].Props["label"] = "changed"

	r, ok := tree.Row("r2")
	require.True(t, ok)
	assert.Equal(t, 1, r.Order)
	e, ok := tree.Element("e2")
	require.True(t, ok)
	assert.Equal(t, "Go", e.Props["label"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)

	data, err := json.Marshal(tree.Snapshot())
	require.NoError(t, err)

	var decoded types.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	again, err := FromSnapshot(decoded)
	require.NoError(t, err)

	if diff := cmp.Diff(tree.Snapshot(), again.Snapshot()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)

	data, err := json.Marshal(tree.Snapshot())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"site", "rows", "columns", "elements"}, keys(raw))

	col := raw["columns"].([]any)[0].(map[string]any)
	assert.Contains(t, col, "rowId")
	el := raw["elements"].([]any)[0].(map[string]any)
	assert.Contains(t, el, "colId")
}

func TestSnapshotOfEmptyTree(t *testing.T) {
	snap := NewTree(types.Site{ID: "s1"}).Snapshot()
	assert.NotNil(t, snap.Rows)
	assert.NotNil(t, snap.Columns)
	assert.NotNil(t, snap.Elements)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Snapshot)
	}{
		{"missing site ID", func(s *types.Snapshot) { s.Site.ID = "" }},
		{"row of another site", func(s *types.Snapshot) { s.Rows[0].SiteID = "s9" }},
		{"duplicate row order", func(s *types.Snapshot) { s.Rows[0].Order = 0 }},
		{"duplicate ID across kinds", func(s *types.Snapshot) { s.Columns[0].ID = "r1" }},
		{"empty element ID", func(s *types.Snapshot) { s.Elements[0].ID = "" }},
		{"column of missing row", func(s *types.Snapshot) { s.Columns[0].RowID = "r9" }},
		{"column too wide", func(s *types.Snapshot) { s.Columns[0].Width = 13 }},
		{"column too narrow", func(s *types.Snapshot) { s.Columns[0].Width = 0 }},
		{"duplicate column order", func(s *types.Snapshot) { s.Columns[0].Order = 0 }},
		{"element of missing column", func(s *types.Snapshot) { s.Elements[0].ColID = "c9" }},
		{"unknown element type", func(s *types.Snapshot) { s.Elements[0].Type = "Banner" }},
		{"duplicate element order", func(s *types.Snapshot) { s.Elements[0].Order = 1 }},
		{"prop outside enumeration", func(s *types.Snapshot) {
			s.Elements[2].Props = map[string]any{"alignment": "up"}
		}},
		{"prop of wrong type", func(s *types.Snapshot) {
			s.Elements[2].Props = map[string]any{"fontSize": "huge"}
		}},
		{"string prop of wrong type", func(s *types.Snapshot) {
			s.Elements[0].Props = map[string]any{"label": 7}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := sampleSnapshot()
			tt.mutate(&snap)
			_, err := FromSnapshot(snap)
			assert.ErrorIs(t, err, types.ErrInvalidSnapshot)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestCounts(t *testing.T) {
	tree, err := FromSnapshot(sampleSnapshot())
	require.NoError(t, err)
	rows, cols, els := tree.Counts()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 3, els)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

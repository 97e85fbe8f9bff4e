package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/canvas/pkg/site"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func attachBackend(t *testing.T, dir string, cfg *types.SQLiteConfig) *Backend {
	t.Helper()
	b := NewBackend()
	b.now = func() time.Time { return testNow }
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir, SQLiteConfig: cfg})
	require.NoError(t, err)
	return b
}

// buildTree creates a site with one row, one column and one Text element
// whose content is overridden.
func buildTree(t *testing.T, s types.Site) *site.Tree {
	t.Helper()
	eng := site.NewEngine(nil)
	tree := site.NewTree(s)
	tree, row, err := eng.AddRow(tree, s.ID)
	require.NoError(t, err)
	tree, col, err := eng.AddColumn(tree, row.ID, 6)
	require.NoError(t, err)
	tree, el, err := eng.AddElement(tree, col.ID, types.ElementText)
	require.NoError(t, err)
	tree, _, err = eng.UpdateElement(tree, el.ID, map[string]any{"content": "Hello", "fontSize": 20})
	require.NoError(t, err)
	return tree
}

func TestAttachCreatesJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir, nil)
	defer b.Detach()

	for _, ts := range tableSpecs {
		info, err := os.Stat(filepath.Join(dir, ts.file))
		require.NoError(t, err, ts.file)
		assert.Zero(t, info.Size(), ts.file)
	}
	_, err := os.Stat(filepath.Join(dir, dbFileName))
	assert.NoError(t, err)
}

func TestAttachTwice(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()

	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestAttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: "postgres"})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestDetachedOperations(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	ctx := context.Background()
	_, err := b.CreateSite(ctx, types.Site{TenantID: "acme"})
	assert.ErrorIs(t, err, types.ErrBackendDetached)
	_, err = b.ListSites(ctx, "acme")
	assert.ErrorIs(t, err, types.ErrBackendDetached)
	_, err = b.LoadSite(ctx, "x")
	assert.ErrorIs(t, err, types.ErrBackendDetached)
	assert.ErrorIs(t, b.SaveSite(ctx, site.NewTree(types.Site{ID: "x", TenantID: "acme"})), types.ErrBackendDetached)
	assert.ErrorIs(t, b.DeleteSite(ctx, "x"), types.ErrBackendDetached)
	assert.ErrorIs(t, b.Flush(), types.ErrBackendDetached)
}

func TestCreateSite(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()
	ctx := context.Background()

	s, err := b.CreateSite(ctx, types.Site{TenantID: "acme", Title: "Feedback"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, testNow, s.CreatedAt)
	assert.Equal(t, testNow, s.UpdatedAt)

	got, err := b.GetSite(ctx, s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("GetSite mismatch (-want +got):\n%s", diff)
	}

	_, err = b.CreateSite(ctx, types.Site{ID: s.ID, TenantID: "acme"})
	assert.ErrorIs(t, err, types.ErrSiteExists)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = b.CreateSite(ctx, types.Site{TenantID: "  "})
	assert.ErrorIs(t, err, types.ErrInvalidTenant)

	_, err = b.GetSite(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrSiteNotFound)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListSites(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()
	ctx := context.Background()

	for i, tc := range []struct{ id, tenant string }{
		{"s1", "acme"}, {"s2", "globex"}, {"s3", "acme"},
	} {
		_, err := b.CreateSite(ctx, types.Site{
			ID: tc.id, TenantID: tc.tenant,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		tenant string
		want   []string
	}{
		{"one tenant", "acme", []string{"s1", "s3"}},
		{"other tenant", "globex", []string{"s2"}},
		{"unknown tenant", "initech", []string{}},
		{"all tenants", "", []string{"s1", "s2", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := b.ListSites(ctx, tt.tenant)
			require.NoError(t, err)
			ids := []string{}
			for _, s := range sites {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSaveAndLoadSite(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()
	ctx := context.Background()

	s, err := b.CreateSite(ctx, types.Site{ID: "site1", TenantID: "acme"})
	require.NoError(t, err)

	tree := buildTree(t, s)
	require.NoError(t, b.SaveSite(ctx, tree))

	loaded, err := b.LoadSite(ctx, "site1")
	require.NoError(t, err)

	want := normalize(tree.Snapshot())
	got := normalize(loaded.Snapshot())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// Saving a smaller tree replaces the schema.
	require.NoError(t, b.SaveSite(ctx, site.NewTree(s)))
	loaded, err = b.LoadSite(ctx, "site1")
	require.NoError(t, err)
	rows, cols, els := loaded.Counts()
	assert.Equal(t, [3]int{0, 0, 0}, [3]int{rows, cols, els})
}

func TestSaveSiteUpserts(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()
	ctx := context.Background()

	tree := buildTree(t, types.Site{ID: "imported", TenantID: "acme", Title: "Imported", CreatedAt: testNow, UpdatedAt: testNow})
	require.NoError(t, b.SaveSite(ctx, tree))

	got, err := b.GetSite(ctx, "imported")
	require.NoError(t, err)
	assert.Equal(t, "Imported", got.Title)

	err = b.SaveSite(ctx, site.NewTree(types.Site{ID: "x"}))
	assert.ErrorIs(t, err, types.ErrInvalidTenant)
	assert.ErrorIs(t, b.SaveSite(ctx, nil), types.ErrInvalidSnapshot)
}

func TestSaveSiteIsolatesSites(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()
	ctx := context.Background()

	a := buildTree(t, types.Site{ID: "a", TenantID: "acme"})
	c := buildTree(t, types.Site{ID: "c", TenantID: "acme"})
	require.NoError(t, b.SaveSite(ctx, a))
	require.NoError(t, b.SaveSite(ctx, c))
	require.NoError(t, b.SaveSite(ctx, site.NewTree(a.Site())))

	loaded, err := b.LoadSite(ctx, "c")
	require.NoError(t, err)
	_, _, els := loaded.Counts()
	assert.Equal(t, 1, els)
}

func TestLoadSiteNotFound(t *testing.T) {
	b := attachBackend(t, t.TempDir(), nil)
	defer b.Detach()

	_, err := b.LoadSite(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrSiteNotFound)
}

func TestDeleteSite(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir, nil)
	defer b.Detach()
	ctx := context.Background()

	require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: "a", TenantID: "acme"})))
	require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: "c", TenantID: "acme"})))
	require.NoError(t, b.DeleteSite(ctx, "a"))

	_, err := b.LoadSite(ctx, "a")
	assert.ErrorIs(t, err, types.ErrSiteNotFound)
	assert.ErrorIs(t, b.DeleteSite(ctx, "a"), types.ErrSiteNotFound)

	data, err := os.ReadFile(filepath.Join(dir, "elements.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), `"site_id":"a"`)
}

func TestSaveSiteRejectsNodeIDsOfAnotherSite(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir, nil)
	defer b.Detach()
	ctx := context.Background()

	first := buildTree(t, types.Site{ID: "a", TenantID: "acme", CreatedAt: testNow})
	require.NoError(t, b.SaveSite(ctx, first))

	// Same rows, columns and elements under a different site ID.
	snap := first.Snapshot()
	snap.Site.ID = "b"
	for i := range snap.Rows {
		snap.Rows[i].SiteID = "b"
	}
	clash, err := site.FromSnapshot(snap)
	require.NoError(t, err)

	err = b.SaveSite(ctx, clash)
	assert.ErrorIs(t, err, types.ErrInvalidSnapshot)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = b.LoadSite(ctx, "b")
	assert.ErrorIs(t, err, types.ErrSiteNotFound, "rejected save leaves nothing behind")
	got, err := b.LoadSite(ctx, "a")
	require.NoError(t, err)
	if diff := cmp.Diff(normalize(first.Snapshot()), normalize(got.Snapshot())); diff != "" {
		t.Errorf("site a changed (-want +got):\n%s", diff)
	}
}

func TestReattachReloadsFromJSONL(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := attachBackend(t, dir, nil)
	tree := buildTree(t, types.Site{ID: "site1", TenantID: "acme", CreatedAt: testNow, UpdatedAt: testNow})
	require.NoError(t, b.SaveSite(ctx, tree))
	require.NoError(t, b.Detach())

	b2 := attachBackend(t, dir, nil)
	defer b2.Detach()

	loaded, err := b2.LoadSite(ctx, "site1")
	require.NoError(t, err)
	if diff := cmp.Diff(normalize(tree.Snapshot()), normalize(loaded.Snapshot())); diff != "" {
		t.Errorf("reloaded snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestElementsJSONLNestsProps(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir, nil)
	defer b.Detach()

	require.NoError(t, b.SaveSite(context.Background(), buildTree(t, types.Site{ID: "site1", TenantID: "acme"})))

	records, err := readJSONL(filepath.Join(dir, "elements.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0]), `"props":{"content":"Hello","fontSize":20}`)
}

func TestSyncStrategies(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name        string
		cfg         *types.SQLiteConfig
		wantPending bool
	}{
		{"immediate", &types.SQLiteConfig{SyncStrategy: types.SyncImmediate}, false},
		{"default", nil, false},
		{"on_close", &types.SQLiteConfig{SyncStrategy: types.SyncOnClose}, true},
		{"batch below size", &types.SQLiteConfig{SyncStrategy: types.SyncBatch, BatchSize: 100, BatchInterval: 3600}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()
			b := attachBackend(t, dir, tt.cfg)

			require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: "site1", TenantID: "acme"})))

			records, err := readJSONL(filepath.Join(dir, "sites.jsonl"))
			require.NoError(t, err)
			if tt.wantPending {
				assert.Empty(t, records, "JSONL written before flush")
				assert.Positive(t, b.PendingWrites())
			} else {
				assert.Len(t, records, 1)
				assert.Zero(t, b.PendingWrites())
			}

			require.NoError(t, b.Detach())
			records, err = readJSONL(filepath.Join(dir, "sites.jsonl"))
			require.NoError(t, err)
			assert.Len(t, records, 1, "Detach flushes pending writes")
		})
	}
}

func TestBatchSizeFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	ctx := context.Background()
	b := attachBackend(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncBatch, BatchSize: 3, BatchInterval: 3600})
	defer b.Detach()

	for i, id := range []string{"site1", "site2"} {
		require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: id, TenantID: "acme"})))
		assert.Positive(t, b.PendingWrites(), "save %d flushed early", i+1)
	}
	records, err := readJSONL(filepath.Join(dir, "sites.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)

	// The third save reaches the batch size however many tables it touched.
	require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: "site3", TenantID: "acme"})))
	assert.Zero(t, b.PendingWrites())

	records, err = readJSONL(filepath.Join(dir, "sites.jsonl"))
	require.NoError(t, err)
	assert.Len(t, records, 3)
	records, err = readJSONL(filepath.Join(dir, "rows.jsonl"))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// The count restarts after a flush.
	require.NoError(t, b.SaveSite(ctx, buildTree(t, types.Site{ID: "site4", TenantID: "acme"})))
	assert.Positive(t, b.PendingWrites())
}

func TestBatchIntervalFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	b := attachBackend(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncBatch, BatchSize: 100, BatchInterval: 1})
	defer b.Detach()

	require.NoError(t, b.SaveSite(context.Background(), buildTree(t, types.Site{ID: "site1", TenantID: "acme"})))
	require.Positive(t, b.PendingWrites())

	require.Eventually(t, func() bool { return b.PendingWrites() == 0 }, 5*time.Second, 50*time.Millisecond)

	records, err := readJSONL(filepath.Join(dir, "sites.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0]), `"site_id":"site1"`)
	records, err = readJSONL(filepath.Join(dir, "elements.jsonl"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExplicitFlush(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncOnClose})
	defer b.Detach()

	_, err := b.CreateSite(context.Background(), types.Site{ID: "s1", TenantID: "acme"})
	require.NoError(t, err)
	require.NoError(t, b.Flush())

	records, err := readJSONL(filepath.Join(dir, "sites.jsonl"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAttachSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	lines := strings.Join([]string{
		`{"site_id":"good","tenant_id":"acme","published":1,"title":"T","favicon":"","meta_description":"","analytics_id":"","created_at":"2026-03-01T12:00:00Z","updated_at":"2026-03-01T12:00:00Z","future_field":true}`,
		`{not json`,
		``,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sites.jsonl"), []byte(lines), 0o644))

	b := attachBackend(t, dir, nil)
	defer b.Detach()

	sites, err := b.ListSites(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.True(t, sites[0].Published)
	assert.Equal(t, testNow, sites[0].CreatedAt)
}

func TestWriteJSONLAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jsonl")

	require.NoError(t, writeJSONL(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	err = writeJSONL(filepath.Join(dir, "missing", "x.jsonl"), nil)
	assert.Error(t, err)
}

// normalize drops representation differences that do not matter after a
// storage round trip: JSON numbers decode as float64.
func normalize(s types.Snapshot) types.Snapshot {
	for i, e := range s.Elements {
		props := map[string]any{}
		for k, v := range e.Props {
			if n, ok := v.(int); ok {
				v = float64(n)
			}
			props[k] = v
		}
		s.Elements[i].Props = props
	}
	return s
}

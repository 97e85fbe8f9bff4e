package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/canvas/pkg/site"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

const siteColumns = "site_id, tenant_id, published, title, favicon, meta_description, analytics_id, created_at, updated_at"

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateSite inserts an empty site. An empty ID is replaced by a new UUID
// v7; zero timestamps are set to now.
func (b *Backend) CreateSite(ctx context.Context, s types.Site) (types.Site, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.Site{}, types.ErrBackendDetached
	}
	if strings.TrimSpace(s.TenantID) == "" {
		return types.Site{}, types.ErrInvalidTenant
	}
	if s.ID == "" {
		s.ID = site.NewID()
	}
	now := b.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}

	if _, err := getSite(ctx, b.db, s.ID); err == nil {
		return types.Site{}, fmt.Errorf("%w: %s", types.ErrSiteExists, s.ID)
	} else if !errors.Is(err, types.ErrSiteNotFound) {
		return types.Site{}, err
	}

	if err := insertSite(ctx, b.db, s); err != nil {
		return types.Site{}, err
	}
	if err := b.persistTables("create", tableSites); err != nil {
		return types.Site{}, err
	}
	b.logger.Info("site created", "site_id", s.ID, "tenant_id", s.TenantID)
	return s, nil
}

// GetSite returns the metadata of one site.
func (b *Backend) GetSite(ctx context.Context, siteID string) (types.Site, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.Site{}, types.ErrBackendDetached
	}
	return getSite(ctx, b.db, siteID)
}

// ListSites returns the sites of a tenant, oldest first. An empty tenant
// lists every site.
func (b *Backend) ListSites(ctx context.Context, tenantID string) ([]types.Site, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	query := "SELECT " + siteColumns + " FROM sites"
	var args []any
	if tenantID != "" {
		query += " WHERE tenant_id = ?"
		args = append(args, tenantID)
	}
	query += " ORDER BY created_at, site_id"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	sites := []types.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// DeleteSite removes a site and its whole schema.
func (b *Backend) DeleteSite(ctx context.Context, siteID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM sites WHERE site_id = ?", siteID)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrSiteNotFound
	}
	if err := deleteSchema(ctx, tx, siteID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	if err := b.persistTables("delete", allTables...); err != nil {
		return err
	}
	b.logger.Info("site deleted", "site_id", siteID)
	return nil
}

// LoadSite reads one site's full schema as an immutable tree.
func (b *Backend) LoadSite(ctx context.Context, siteID string) (*site.Tree, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	snap, err := loadSnapshot(ctx, b.db, siteID)
	if err != nil {
		return nil, err
	}
	return site.FromSnapshot(snap)
}

// SaveSite replaces the stored schema of the tree's site in one
// transaction. The site row is created if it does not exist.
func (b *Backend) SaveSite(ctx context.Context, t *site.Tree) error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", types.ErrInvalidSnapshot)
	}
	snap := t.Snapshot()
	if strings.TrimSpace(snap.Site.TenantID) == "" {
		return types.ErrInvalidTenant
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := upsertSite(ctx, tx, snap.Site); err != nil {
		return err
	}
	if err := deleteSchema(ctx, tx, snap.Site.ID); err != nil {
		return err
	}
	if err := insertSchema(ctx, tx, snap); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	if err := b.persistTables("save", allTables...); err != nil {
		return err
	}
	b.logger.Debug("site saved", "site_id", snap.Site.ID,
		"rows", len(snap.Rows), "columns", len(snap.Columns), "elements", len(snap.Elements))
	return nil
}

func getSite(ctx context.Context, q queryer, siteID string) (types.Site, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+siteColumns+" FROM sites WHERE site_id = ?", siteID)
	if err != nil {
		return types.Site{}, fmt.Errorf("get site: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Site{}, fmt.Errorf("get site: %w", err)
		}
		return types.Site{}, types.ErrSiteNotFound
	}
	return scanSite(rows)
}

func scanSite(rows *sql.Rows) (types.Site, error) {
	var (
		s                    types.Site
		published            int
		createdAt, updatedAt string
	)
	if err := rows.Scan(&s.ID, &s.TenantID, &published, &s.Title, &s.Favicon,
		&s.MetaDescription, &s.AnalyticsID, &createdAt, &updatedAt); err != nil {
		return types.Site{}, fmt.Errorf("scan site: %w", err)
	}
	s.Published = published != 0
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

func insertSite(ctx context.Context, q queryer, s types.Site) error {
	_, err := q.ExecContext(ctx, "INSERT INTO sites ("+siteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.TenantID, boolToInt(s.Published), s.Title, s.Favicon,
		s.MetaDescription, s.AnalyticsID, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func upsertSite(ctx context.Context, q queryer, s types.Site) error {
	_, err := q.ExecContext(ctx, "INSERT INTO sites ("+siteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(site_id) DO UPDATE SET
    tenant_id = excluded.tenant_id,
    published = excluded.published,
    title = excluded.title,
    favicon = excluded.favicon,
    meta_description = excluded.meta_description,
    analytics_id = excluded.analytics_id,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`,
		s.ID, s.TenantID, boolToInt(s.Published), s.Title, s.Favicon,
		s.MetaDescription, s.AnalyticsID, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}
	return nil
}

// deleteSchema removes every row, column and element of a site.
func deleteSchema(ctx context.Context, q queryer, siteID string) error {
	for _, table := range []string{tableElements, tableColumns, tableRows} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE site_id = ?", siteID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func insertSchema(ctx context.Context, q queryer, snap types.Snapshot) error {
	siteID := snap.Site.ID
	for _, r := range snap.Rows {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO rows (row_id, site_id, position) VALUES (?, ?, ?)",
			r.ID, siteID, r.Order); err != nil {
			return insertError("row", r.ID, err)
		}
	}
	for _, c := range snap.Columns {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO columns (column_id, row_id, site_id, width, position) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.RowID, siteID, c.Width, c.Order); err != nil {
			return insertError("column", c.ID, err)
		}
	}
	for _, e := range snap.Elements {
		props, err := json.Marshal(nonNilProps(e.Props))
		if err != nil {
			return fmt.Errorf("marshal props of %s: %w", e.ID, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO elements (element_id, column_id, site_id, element_type, props, position) VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, e.ColID, siteID, string(e.Type), string(props), e.Order); err != nil {
			return insertError("element", e.ID, err)
		}
	}
	return nil
}

// insertError reports a constraint violation, such as a node ID already
// stored under another site, as an invalid snapshot.
func insertError(kind, id string, err error) error {
	var se *sqlitedrv.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s %s conflicts with a stored record", types.ErrInvalidSnapshot, kind, id)
	}
	return fmt.Errorf("insert %s %s: %w", kind, id, err)
}

// loadSnapshot reads a site and its schema in flat form.
func loadSnapshot(ctx context.Context, q queryer, siteID string) (types.Snapshot, error) {
	s, err := getSite(ctx, q, siteID)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap := types.Snapshot{Site: s, Rows: []types.Row{}, Columns: []types.Column{}, Elements: []types.Element{}}

	rows, err := q.QueryContext(ctx, "SELECT row_id, position FROM rows WHERE site_id = ?", siteID)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("load rows: %w", err)
	}
	for rows.Next() {
		r := types.Row{SiteID: siteID}
		if err := rows.Scan(&r.ID, &r.Order); err != nil {
			rows.Close()
			return types.Snapshot{}, fmt.Errorf("scan row: %w", err)
		}
		snap.Rows = append(snap.Rows, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Snapshot{}, fmt.Errorf("load rows: %w", err)
	}

	rows, err = q.QueryContext(ctx, "SELECT column_id, row_id, width, position FROM columns WHERE site_id = ?", siteID)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("load columns: %w", err)
	}
	for rows.Next() {
		var c types.Column
		if err := rows.Scan(&c.ID, &c.RowID, &c.Width, &c.Order); err != nil {
			rows.Close()
			return types.Snapshot{}, fmt.Errorf("scan column: %w", err)
		}
		snap.Columns = append(snap.Columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Snapshot{}, fmt.Errorf("load columns: %w", err)
	}

	rows, err = q.QueryContext(ctx, "SELECT element_id, column_id, element_type, props, position FROM elements WHERE site_id = ?", siteID)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("load elements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e     types.Element
			et    string
			props string
		)
		if err := rows.Scan(&e.ID, &e.ColID, &et, &props, &e.Order); err != nil {
			return types.Snapshot{}, fmt.Errorf("scan element: %w", err)
		}
		e.Type = types.ElementType(et)
		e.Props = map[string]any{}
		if props != "" {
			if err := json.Unmarshal([]byte(props), &e.Props); err != nil {
				return types.Snapshot{}, fmt.Errorf("%w: props of %s: %v", types.ErrInvalidSnapshot, e.ID, err)
			}
		}
		snap.Elements = append(snap.Elements, e)
	}
	if err := rows.Err(); err != nil {
		return types.Snapshot{}, fmt.Errorf("load elements: %w", err)
	}
	return snap, nil
}

func nonNilProps(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

package sqlite

import (
	"database/sql"
	"fmt"
)

// Table DDL. Columns and elements carry site_id so a site can be loaded or
// replaced without walking the tree.
const (
	createSites = `CREATE TABLE sites (
    site_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    published INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    favicon TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    analytics_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createRows = `CREATE TABLE rows (
    row_id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (site_id) REFERENCES sites(site_id) ON DELETE CASCADE
);`

	createColumns = `CREATE TABLE columns (
    column_id TEXT PRIMARY KEY,
    row_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    width INTEGER NOT NULL CHECK (width BETWEEN 1 AND 12),
    position INTEGER NOT NULL,
    FOREIGN KEY (row_id) REFERENCES rows(row_id) ON DELETE CASCADE
);`

	createElements = `CREATE TABLE elements (
    element_id TEXT PRIMARY KEY,
    column_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    element_type TEXT NOT NULL,
    props TEXT NOT NULL DEFAULT '{}',
    position INTEGER NOT NULL,
    FOREIGN KEY (column_id) REFERENCES columns(column_id) ON DELETE CASCADE
);`
)

// Index DDL for per-tenant and per-site queries.
const (
	idxSitesTenant    = `CREATE INDEX idx_sites_tenant ON sites(tenant_id, created_at);`
	idxRowsSite       = `CREATE INDEX idx_rows_site ON rows(site_id);`
	idxColumnsSite    = `CREATE INDEX idx_columns_site ON columns(site_id);`
	idxColumnsRow     = `CREATE INDEX idx_columns_row ON columns(row_id);`
	idxElementsSite   = `CREATE INDEX idx_elements_site ON elements(site_id);`
	idxElementsColumn = `CREATE INDEX idx_elements_column ON elements(column_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSites,
	createRows,
	createColumns,
	createElements,
}

var indexDDL = []string{
	idxSitesTenant,
	idxRowsSite,
	idxColumnsSite,
	idxColumnsRow,
	idxElementsSite,
	idxElementsColumn,
}

// createSchema creates all tables and indexes in a fresh database.
func createSchema(db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

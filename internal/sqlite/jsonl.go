package sqlite

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tableSpec ties a SQLite table to its JSONL file.
type tableSpec struct {
	file    string
	table   string
	key     string
	columns []string
	// jsonColumns hold JSON text in SQLite and nested values in JSONL.
	jsonColumns map[string]bool
}

// Table names, also used as pendingWrite keys.
const (
	tableSites    = "sites"
	tableRows     = "rows"
	tableColumns  = "columns"
	tableElements = "elements"
)

// allTables lists the tables a whole-site save touches.
var allTables = []string{tableSites, tableRows, tableColumns, tableElements}

// tableSpecs is ordered parent-first so loading never sees a dangling parent.
var tableSpecs = []tableSpec{
	{
		file: "sites.jsonl", table: tableSites, key: "site_id",
		columns: []string{"site_id", "tenant_id", "published", "title", "favicon",
			"meta_description", "analytics_id", "created_at", "updated_at"},
	},
	{
		file: "rows.jsonl", table: tableRows, key: "row_id",
		columns: []string{"row_id", "site_id", "position"},
	},
	{
		file: "columns.jsonl", table: tableColumns, key: "column_id",
		columns: []string{"column_id", "row_id", "site_id", "width", "position"},
	},
	{
		file: "elements.jsonl", table: tableElements, key: "element_id",
		columns:     []string{"element_id", "column_id", "site_id", "element_type", "props", "position"},
		jsonColumns: map[string]bool{"props": true},
	},
}

func lookupTableSpec(table string) (tableSpec, bool) {
	for _, ts := range tableSpecs {
		if ts.table == table {
			return ts, true
		}
	}
	return tableSpec{}, false
}

// initJSONLFiles creates any missing JSONL file as an empty file.
func initJSONLFiles(dataDir string) error {
	for _, ts := range tableSpecs {
		path := filepath.Join(dataDir, ts.file)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", ts.file, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("create %s: %w", ts.file, err)
		}
	}
	return nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line.
// Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		records = append(records, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL replaces path with records, one per line, via temp file,
// fsync and rename so readers never see a partial file.
func writeJSONL(path string, records []json.RawMessage) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err = w.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err = w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush buffer: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// persistTableJSONL dumps a whole table to its JSONL file, ordered by key.
func persistTableJSONL(db *sql.DB, dataDir, table string) error {
	ts, ok := lookupTableSpec(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(ts.columns, ", "), ts.table, ts.key)
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		values := make([]any, len(ts.columns))
		ptrs := make([]any, len(ts.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}

		obj := make(map[string]any, len(ts.columns))
		for i, col := range ts.columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if s, ok := v.(string); ok && ts.jsonColumns[col] {
				v = json.RawMessage(s)
			}
			obj[col] = v
		}
		rec, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}

	return writeJSONL(filepath.Join(dataDir, ts.file), records)
}

package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// loadAllJSONL reads each JSONL file from dataDir into its table. Loading is
// transactional: all files load or the database stays empty. Malformed lines
// and records that violate constraints are skipped; unknown fields are
// ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ts := range tableSpecs {
		records, err := readJSONL(filepath.Join(dataDir, ts.file))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, ts, records); err != nil {
			return fmt.Errorf("load %s: %w", ts.file, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into ts.table. Nested JSON
// values are re-serialized as text.
func insertRecords(tx *sql.Tx, ts tableSpec, records []json.RawMessage) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ts.columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ts.table, strings.Join(ts.columns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", ts.table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		args := make([]any, len(ts.columns))
		for i, col := range ts.columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			case nil:
				if ts.jsonColumns[col] {
					args[i] = "{}"
				}
			default:
				args[i] = v
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}

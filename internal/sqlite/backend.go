// Package sqlite implements site persistence with SQLite as the query
// engine and JSONL files as the source of truth.
//
// On Attach the database file is rebuilt from the JSONL files in DataDir.
// Every save updates SQLite synchronously; when the JSONL files are
// rewritten depends on the configured sync strategy (immediate, on_close,
// or batch).
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

// dbFileName is the SQLite file created inside DataDir.
const dbFileName = "canvas.db"

// Backend stores site snapshots.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
	logger   *slog.Logger
	now      func() time.Time

	// Sync strategy state.
	syncStrategy  string         // effective sync strategy: immediate, on_close, batch
	batchSize     int            // number of saves before batch flush
	batchInterval time.Duration  // time between batch flushes
	pendingWrites []pendingWrite // queue of writes pending JSONL persist
	pendingSaves  int            // saves queued since the last flush
	batchTimer    *time.Timer    // timer for interval-based batch flush
	batchMu       sync.Mutex     // protects pendingWrites, pendingSaves, and batchTimer
}

// pendingWrite represents a deferred JSONL write of one table.
// Used by on_close and batch sync strategies.
type pendingWrite struct {
	tableName string       // sites, rows, columns, elements
	operation string       // "save" or "delete"
	persist   func() error // rewrites the table's JSONL file
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, rebuilds the SQLite database from
// the JSONL files, and starts the batch timer when configured.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// The database is a cache of the JSONL files; start from scratch.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return fmt.Errorf("init JSONL: %w", err)
	}
	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil
	b.attached = true

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	b.logger.Debug("backend attached", "data_dir", dataDir, "sync", b.syncStrategy)
	return nil
}

// Detach flushes pending JSONL writes and closes the database. After
// Detach, all operations return ErrBackendDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.logger.Debug("backend detached", "data_dir", b.dataDir)
	return nil
}

// DataDir returns the directory holding the JSONL files.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// Flush writes all pending JSONL changes now, regardless of strategy.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	return b.flushPendingWritesLocked()
}

// persistTables rewrites the JSONL files of the named tables, or queues the
// rewrite under the on_close and batch strategies. One call is one save for
// the batch size threshold. The caller must hold b.mu.
func (b *Backend) persistTables(operation string, tables ...string) error {
	if b.shouldPersistImmediately() {
		for _, table := range tables {
			if err := persistTableJSONL(b.db, b.dataDir, table); err != nil {
				return fmt.Errorf("persist %s: %w", table, err)
			}
		}
		return nil
	}
	for _, table := range tables {
		table := table
		b.queueWrite(table, operation, func() error { return persistTableJSONL(b.db, b.dataDir, table) })
	}
	b.batchMu.Lock()
	b.pendingSaves++
	b.batchMu.Unlock()
	b.maybeFlushBatch()
	return nil
}

// shouldPersistImmediately returns true if JSONL writes should happen immediately.
// Returns true for "immediate" strategy (default), false for "on_close" and "batch".
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a write operation to the pending queue.
func (b *Backend) queueWrite(tableName, operation string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		tableName: tableName,
		operation: operation,
		persist:   persist,
	})
}

// maybeFlushBatch flushes when the batch strategy has queued batchSize
// saves since the last flush.
func (b *Backend) maybeFlushBatch() {
	if b.syncStrategy != types.SyncBatch {
		return
	}
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	if b.batchSize > 0 && b.pendingSaves >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			b.logger.Warn("batch flush failed", "error", err)
		}
	}
}

// PendingWrites returns the number of queued JSONL writes.
func (b *Backend) PendingWrites() int {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return len(b.pendingWrites)
}

// flushPendingWritesLocked flushes all pending writes to JSONL files.
// The caller must hold b.mu write lock.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked executes pending writes. Only the last
// queued write per table runs; earlier ones would be overwritten anyway.
// The caller must hold b.batchMu.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}

	last := make(map[string]int, len(b.pendingWrites))
	for i, pw := range b.pendingWrites {
		last[pw.tableName] = i
	}
	for i, pw := range b.pendingWrites {
		if last[pw.tableName] != i {
			continue
		}
		if err := pw.persist(); err != nil {
			// Keep the queue; the next flush or Attach reconciles.
			return fmt.Errorf("flush %s %s: %w", pw.tableName, pw.operation, err)
		}
	}

	b.logger.Debug("flushed JSONL writes", "queued", len(b.pendingWrites), "tables", len(last))
	b.pendingWrites = nil
	b.pendingSaves = 0
	return nil
}

// startBatchTimer starts the batch interval timer for periodic flushes.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return // already running
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		if err := b.flushPendingWritesLocked(); err != nil {
			b.logger.Warn("batch flush failed", "error", err)
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

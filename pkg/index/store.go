package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/config"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	address       TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	name_lower    TEXT NOT NULL DEFAULT '',
	factory       TEXT NOT NULL DEFAULT '',
	creator       TEXT NOT NULL DEFAULT '',
	vault         TEXT NOT NULL DEFAULT '',
	contract_type TEXT NOT NULL DEFAULT '',
	block_number  INTEGER NOT NULL DEFAULT 0,
	tx_hash       TEXT NOT NULL DEFAULT '',
	registered_at INTEGER NOT NULL DEFAULT 0,
	indexed       INTEGER NOT NULL DEFAULT 1,
	hydrated      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_projects_name_lower    ON projects(name_lower);
CREATE INDEX IF NOT EXISTS idx_projects_contract_type ON projects(contract_type);
CREATE INDEX IF NOT EXISTS idx_projects_vault         ON projects(vault);
CREATE INDEX IF NOT EXISTS idx_projects_creator       ON projects(creator);
CREATE INDEX IF NOT EXISTS idx_projects_factory       ON projects(factory);
CREATE INDEX IF NOT EXISTS idx_projects_registered_at ON projects(registered_at DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	last_indexed_block INTEGER NOT NULL DEFAULT 0,
	index_mode         TEXT NOT NULL DEFAULT 'full'
);
INSERT OR IGNORE INTO sync_state (id, last_indexed_block, index_mode) VALUES (1, 0, 'full');
`

// Store is the persistent index of ledger-registered instances, backed by
// SQLite. It exclusively owns the projects table and the sync checkpoint.
//
// When the storage capability is unavailable (the database cannot be opened
// or migrated) every operation returns its zero-value result instead of an
// error; IsSupported exposes the capability flag for callers that want to
// branch explicitly.
type Store struct {
	db        *sql.DB
	path      string
	supported bool
	log       *logging.ColoredLogger
}

// NewStore opens (or creates) the index database at path. An open or
// migration failure yields a degraded store, not an error.
func NewStore(path string, log *logging.ColoredLogger) *Store {
	s := &Store{path: path, log: log}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.ComponentWarn(logging.ComponentIndex, "storage unavailable, index degraded to no-op",
			zap.String("path", path), zap.Error(err))
		return s
	}
	if _, err := db.Exec(schema); err != nil {
		log.ComponentWarn(logging.ComponentIndex, "schema migration failed, index degraded to no-op",
			zap.String("path", path), zap.Error(err))
		_ = db.Close()
		return s
	}

	s.db = db
	s.supported = true
	return s
}

// IsSupported reports whether the storage capability is available.
func (s *Store) IsSupported() bool {
	return s.supported
}

// Search returns addresses whose name contains the query, case-insensitively,
// in storage-iteration order, capped at limit.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if !s.supported {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address FROM projects WHERE name_lower LIKE '%' || ? || '%' ESCAPE '\' LIMIT ?`,
		escapeLike(strings.ToLower(query)), limit)
	if err != nil {
		return nil, lierrors.NewStorageError("search", err)
	}
	defer rows.Close()

	return scanAddresses(rows)
}

// FilterBy returns addresses matching every set field of the filter, capped
// at limit. A single-field filter runs off that field's secondary index; a
// multi-field filter applies all predicates in one scan.
func (s *Store) FilterBy(ctx context.Context, f Filter, limit int) ([]string, error) {
	if !s.supported {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var conds []string
	var args []interface{}
	for col, val := range map[string]string{
		"contract_type": f.ContractType,
		"vault":         NormalizeAddress(f.Vault),
		"creator":       NormalizeAddress(f.Creator),
		"factory":       NormalizeAddress(f.Factory),
	} {
		if val != "" {
			conds = append(conds, col+" = ?")
			args = append(args, val)
		}
	}
	if len(conds) == 0 {
		return nil, nil
	}
	args = append(args, limit)

	q := `SELECT address FROM projects WHERE ` + strings.Join(conds, " AND ") + ` LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, lierrors.NewStorageError("filter", err)
	}
	defer rows.Close()

	return scanAddresses(rows)
}

// GetAllProjects returns entities ordered by registration time descending,
// with offset-based pagination.
func (s *Store) GetAllProjects(ctx context.Context, limit, offset int) ([]IndexedEntity, error) {
	if !s.supported {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, name, name_lower, factory, creator, vault, contract_type,
		        block_number, tx_hash, registered_at, indexed, hydrated
		 FROM projects
		 ORDER BY registered_at DESC, block_number DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, lierrors.NewStorageError("list", err)
	}
	defer rows.Close()

	var out []IndexedEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetProject returns the entity for an address, or nil when unknown.
func (s *Store) GetProject(ctx context.Context, address string) (*IndexedEntity, error) {
	if !s.supported {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT address, name, name_lower, factory, creator, vault, contract_type,
		        block_number, tx_hash, registered_at, indexed, hydrated
		 FROM projects WHERE address = ?`, NormalizeAddress(address))

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, lierrors.NewStorageError("get", err)
	}
	return &e, nil
}

// UpdateProject merges the non-nil fields of the partial into an existing
// row. Unknown addresses are a no-op.
func (s *Store) UpdateProject(ctx context.Context, address string, p Partial) error {
	if !s.supported {
		return nil
	}

	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?", "name_lower = ?")
		args = append(args, *p.Name, strings.ToLower(*p.Name))
	}
	if p.Vault != nil {
		sets = append(sets, "vault = ?")
		args = append(args, NormalizeAddress(*p.Vault))
	}
	if p.ContractType != nil {
		sets = append(sets, "contract_type = ?")
		args = append(args, *p.ContractType)
	}
	if p.RegisteredAt != nil {
		sets = append(sets, "registered_at = ?")
		args = append(args, *p.RegisteredAt)
	}
	if p.Hydrated != nil {
		sets = append(sets, "hydrated = ?")
		args = append(args, boolToInt(*p.Hydrated))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, NormalizeAddress(address))

	q := `UPDATE projects SET ` + strings.Join(sets, ", ") + ` WHERE address = ?`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return lierrors.NewStorageError("update", err)
	}
	return nil
}

// ProjectCount returns the number of indexed entities.
func (s *Store) ProjectCount(ctx context.Context) (int, error) {
	if !s.supported {
		return 0, nil
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, lierrors.NewStorageError("count", err)
	}
	return n, nil
}

// Checkpoint returns the current sync checkpoint.
func (s *Store) Checkpoint(ctx context.Context) (Checkpoint, error) {
	if !s.supported {
		return Checkpoint{Mode: string(config.IndexModeOff)}, nil
	}

	var cp Checkpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT last_indexed_block, index_mode FROM sync_state WHERE id = 1`).
		Scan(&cp.LastIndexedBlock, &cp.Mode)
	if err != nil {
		return Checkpoint{}, lierrors.NewStorageError("checkpoint", err)
	}
	return cp, nil
}

// SetIndexMode persists the index mode without touching the checkpoint.
func (s *Store) SetIndexMode(ctx context.Context, mode config.IndexMode) error {
	if !s.supported {
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE sync_state SET index_mode = ? WHERE id = 1`, string(mode)); err != nil {
		return lierrors.NewStorageError("set-mode", err)
	}
	return nil
}

// ApplySyncBatch commits a sync pass: upserts every entity and advances the
// checkpoint to toBlock, all in one transaction. Entities already present
// keep their hydration fields; only event-derived columns are refreshed.
// The progress callback, when non-nil, is invoked every progressEvery rows
// with the number of rows applied so far and the batch total.
func (s *Store) ApplySyncBatch(ctx context.Context, entities []IndexedEntity, toBlock uint64, progressEvery int, progress func(done, total int)) (added, updated int, err error) {
	if !s.supported {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existsStmt, err := tx.PrepareContext(ctx, `SELECT 1 FROM projects WHERE address = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare exists statement: %w", err)
	}
	defer existsStmt.Close()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO projects (address, name, name_lower, factory, creator, block_number, tx_hash, indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			name         = excluded.name,
			name_lower   = excluded.name_lower,
			factory      = excluded.factory,
			creator      = excluded.creator,
			block_number = excluded.block_number,
			tx_hash      = excluded.tx_hash`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer upsertStmt.Close()

	total := len(entities)
	for i, e := range entities {
		addr := NormalizeAddress(e.Address)

		var one int
		existed := true
		if scanErr := existsStmt.QueryRowContext(ctx, addr).Scan(&one); scanErr == sql.ErrNoRows {
			existed = false
		} else if scanErr != nil {
			err = fmt.Errorf("failed to check existing row: %w", scanErr)
			return 0, 0, err
		}

		if _, execErr := upsertStmt.ExecContext(ctx, addr, e.Name, strings.ToLower(e.Name),
			NormalizeAddress(e.Factory), NormalizeAddress(e.Creator), e.BlockNumber, e.TransactionHash); execErr != nil {
			err = fmt.Errorf("failed to upsert entity %s: %w", addr, execErr)
			return 0, 0, err
		}

		if existed {
			updated++
		} else {
			added++
		}
		if progress != nil && progressEvery > 0 && (i+1)%progressEvery == 0 {
			progress(i+1, total)
		}
	}

	// Checkpoint only moves forward, and only inside the same transaction as
	// the upserts it covers.
	if _, err = tx.ExecContext(ctx,
		`UPDATE sync_state SET last_indexed_block = MAX(last_indexed_block, ?) WHERE id = 1`, toBlock); err != nil {
		err = fmt.Errorf("failed to advance checkpoint: %w", err)
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit sync transaction: %w", err)
		return 0, 0, err
	}
	return added, updated, nil
}

// ClearIndex wipes entity data and resets the checkpoint to zero, preserving
// the index mode.
func (s *Store) ClearIndex(ctx context.Context) error {
	if !s.supported {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lierrors.NewStorageError("clear", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		_ = tx.Rollback()
		return lierrors.NewStorageError("clear", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sync_state SET last_indexed_block = 0 WHERE id = 1`); err != nil {
		_ = tx.Rollback()
		return lierrors.NewStorageError("clear", err)
	}
	if err := tx.Commit(); err != nil {
		return lierrors.NewStorageError("clear", err)
	}
	return nil
}

// DeleteDatabase tears the database down entirely.
func (s *Store) DeleteDatabase() error {
	if !s.supported {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	s.supported = false

	if s.path != "" && s.path != ":memory:" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove database file: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(r rowScanner) (IndexedEntity, error) {
	var e IndexedEntity
	var indexed, hydrated int
	err := r.Scan(&e.Address, &e.Name, &e.NameLower, &e.Factory, &e.Creator, &e.Vault,
		&e.ContractType, &e.BlockNumber, &e.TransactionHash, &e.RegisteredAt, &indexed, &hydrated)
	if err != nil {
		return IndexedEntity{}, err
	}
	e.Indexed = indexed != 0
	e.Hydrated = hydrated != 0
	return e, nil
}

func scanAddresses(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards so a user query containing % or _
// matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Package migrations applies the audit schema embedded under sql/.
package migrations

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "genbi_schema_migrations"

// advisoryLockKey serializes runners across processes sharing one database.
const advisoryLockKey int64 = 0x67656e6269

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

// execer is satisfied by *sql.DB and *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// NewRunnerWithFS reads migrations from the sql/ directory of fsys.
func NewRunnerWithFS(fsys fs.FS) *Runner {
	return &Runner{fsys: fsys}
}

type State struct {
	Applied []int64
	Pending []int64
	// Drifted lists applied migrations whose up script changed since they ran.
	Drifted []int64
}

type migration struct {
	Version  int64
	UpSQL    string
	DownSQL  string
	Checksum string
}

type appliedMigration struct {
	Version  int64
	Checksum string
}

// Status reports which known migrations are applied, pending, or drifted.
func (r *Runner) Status(ctx context.Context, db *sql.DB) (State, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return State{}, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return State{}, err
	}
	applied, err := listApplied(ctx, db, "ASC")
	if err != nil {
		return State{}, err
	}
	return buildState(migrations, applied), nil
}

// Up applies up to steps pending migrations in version order; steps <= 0
// applies all of them. It refuses to run while any applied migration has
// drifted.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}

	runCount := 0
	err = withLock(ctx, db, func(conn execer) error {
		if err := ensureMigrationTable(ctx, conn); err != nil {
			return err
		}
		applied, err := listApplied(ctx, conn, "ASC")
		if err != nil {
			return err
		}
		state := buildState(migrations, applied)
		if len(state.Drifted) > 0 {
			return fmt.Errorf("applied migrations changed since they ran: %v", state.Drifted)
		}

		for _, item := range migrations {
			if !slices.Contains(state.Pending, item.Version) {
				continue
			}
			if steps > 0 && runCount >= steps {
				break
			}
			if err := applyMigration(ctx, conn, item); err != nil {
				return err
			}
			runCount++
		}
		return nil
	})
	return runCount, err
}

// Down rolls back the latest steps applied migrations; steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}

	runCount := 0
	err = withLock(ctx, db, func(conn execer) error {
		if err := ensureMigrationTable(ctx, conn); err != nil {
			return err
		}
		applied, err := listApplied(ctx, conn, "DESC")
		if err != nil {
			return err
		}
		for _, entry := range applied {
			if runCount >= steps {
				break
			}
			item, ok := lookup[entry.Version]
			if !ok {
				return fmt.Errorf("applied migration %d is missing from source", entry.Version)
			}
			if err := rollbackMigration(ctx, conn, item); err != nil {
				return err
			}
			runCount++
		}
		return nil
	})
	return runCount, err
}

func buildState(migrations []migration, applied []appliedMigration) State {
	checksums := make(map[int64]string, len(applied))
	state := State{Applied: make([]int64, 0, len(applied)), Pending: make([]int64, 0), Drifted: make([]int64, 0)}
	for _, entry := range applied {
		checksums[entry.Version] = entry.Checksum
		state.Applied = append(state.Applied, entry.Version)
	}
	for _, item := range migrations {
		stored, ok := checksums[item.Version]
		switch {
		case !ok:
			state.Pending = append(state.Pending, item.Version)
		case stored != "" && stored != item.Checksum:
			state.Drifted = append(state.Drifted, item.Version)
		}
	}
	return state
}

// withLock runs fn on one connection holding the runner's advisory lock.
func withLock(ctx context.Context, db *sql.DB, fn func(conn execer) error) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, advisoryLockKey); unlockErr != nil && err == nil {
			err = fmt.Errorf("release migration lock: %w", unlockErr)
		}
	}()
	return fn(conn)
}

func ensureMigrationTable(ctx context.Context, db execer) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func applyMigration(ctx context.Context, db execer, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, item.UpSQL); err != nil {
			return fmt.Errorf("apply migration %d: %w", item.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version, checksum) VALUES ($1, $2)`, item.Version, item.Checksum); err != nil {
			return fmt.Errorf("mark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func rollbackMigration(ctx context.Context, db execer, item migration) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, item.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", item.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+migrationTable+` WHERE version = $1`, item.Version); err != nil {
			return fmt.Errorf("unmark migration %d: %w", item.Version, err)
		}
		return nil
	})
}

func inTx(ctx context.Context, db execer, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// listApplied returns applied migrations ordered by version; order must be
// ASC or DESC.
func listApplied(ctx context.Context, db execer, order string) ([]appliedMigration, error) {
	if order != "ASC" && order != "DESC" {
		return nil, fmt.Errorf("invalid order %q", order)
	}
	rows, err := db.QueryContext(ctx, `SELECT version, checksum FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make([]appliedMigration, 0)
	for rows.Next() {
		var entry appliedMigration
		if err := rows.Scan(&entry.Version, &entry.Checksum); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		applied = append(applied, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationNamePattern.FindStringSubmatch(path.Base(entry.Name()))
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", entry.Name(), err)
		}
		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		item.Version = version
		if matches[2] == "up" {
			item.UpSQL = string(script)
			item.Checksum = checksum(script)
		} else {
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	migrations := make([]migration, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		migrations = append(migrations, item)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

func checksum(script []byte) string {
	sum := sha256.Sum256(script)
	return hex.EncodeToString(sum[:])
}

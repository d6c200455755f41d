// Package duckdb runs queries locally over CSV and Parquet table files kept in
// an object store. Executions follow the same lifecycle and page shape as
// Athena so the query client cannot tell the two apart.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/genbi/genbi/internal/query"
	"github.com/genbi/genbi/internal/storage"
)

// MaxStoredRows bounds how many data rows an execution keeps, matching the
// largest page a caller may request.
const MaxStoredRows = 1000

var ErrExecutionNotFound = errors.New("query execution not found")

type Options struct {
	Logger        *slog.Logger
	MaxConcurrent int
	Retention     time.Duration
}

type Engine struct {
	store     storage.ObjectStore
	logger    *slog.Logger
	retention time.Duration
	slots     chan struct{}
	now       func() time.Time

	mu         sync.Mutex
	executions map[string]*execution
	wg         sync.WaitGroup
}

type execution struct {
	state      query.State
	reason     string
	columns    []string
	rows       [][]*string
	finishedAt time.Time
}

type tableFile struct {
	key    string
	format storage.FileFormat
	size   int64
}

func NewEngine(store storage.ObjectStore, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &Engine{
		store:      store,
		logger:     opts.Logger,
		retention:  opts.Retention,
		slots:      make(chan struct{}, opts.MaxConcurrent),
		now:        func() time.Time { return time.Now().UTC() },
		executions: map[string]*execution{},
	}, nil
}

// Submit registers the statement and runs it in the background. Database,
// output location and workgroup have no local meaning and are ignored.
func (e *Engine) Submit(ctx context.Context, request query.Request) (string, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return "", fmt.Errorf("sql is required")
	}

	id := uuid.NewString()
	e.mu.Lock()
	e.pruneLocked()
	e.executions[id] = &execution{state: query.StateQueued}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.WithoutCancel(ctx), id, sqlText)
	}()
	return id, nil
}

func (e *Engine) Status(_ context.Context, executionID string) (query.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[executionID]
	if !ok {
		return query.Status{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	return query.Status{State: exec.state, Reason: exec.reason}, nil
}

// ResultsPage returns the column labels as the first row followed by data
// rows, at most maxRows rows in total.
func (e *Engine) ResultsPage(_ context.Context, executionID string, maxRows int) (query.Page, error) {
	if maxRows <= 0 {
		return query.Page{}, fmt.Errorf("max rows must be greater than zero")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[executionID]
	if !ok {
		return query.Page{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	if exec.state != query.StateSucceeded {
		return query.Page{}, fmt.Errorf("query %s is %s, results are not available", executionID, exec.state)
	}

	header := make([]*string, 0, len(exec.columns))
	for _, column := range exec.columns {
		label := column
		header = append(header, &label)
	}
	rows := make([][]*string, 0, min(len(exec.rows)+1, maxRows))
	rows = append(rows, header)
	for _, row := range exec.rows {
		if len(rows) >= maxRows {
			break
		}
		rows = append(rows, row)
	}
	return query.Page{Columns: append([]string(nil), exec.columns...), Rows: rows}, nil
}

// Wait blocks until every background execution has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, id, sqlText string) {
	e.slots <- struct{}{}
	defer func() { <-e.slots }()

	e.setState(id, func(exec *execution) { exec.state = query.StateRunning })
	start := time.Now()
	columns, rows, err := e.execute(ctx, sqlText)
	e.setState(id, func(exec *execution) {
		exec.finishedAt = e.now()
		if err != nil {
			exec.state = query.StateFailed
			exec.reason = err.Error()
			return
		}
		exec.state = query.StateSucceeded
		exec.columns = columns
		exec.rows = rows
	})
	if err != nil {
		e.logger.WarnContext(ctx, "local query failed", slog.String("execution_id", id), slog.Any("error", err))
		return
	}
	e.logger.DebugContext(ctx, "local query finished",
		slog.String("execution_id", id),
		slog.Int("rows", len(rows)),
		slog.String("duration", time.Since(start).String()),
	)
}

func (e *Engine) setState(id string, update func(*execution)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if exec, ok := e.executions[id]; ok {
		update(exec)
	}
}

func (e *Engine) pruneLocked() {
	cutoff := e.now().Add(-e.retention)
	for id, exec := range e.executions {
		if exec.state.Terminal() && exec.finishedAt.Before(cutoff) {
			delete(e.executions, id)
		}
	}
}

func (e *Engine) execute(ctx context.Context, sqlText string) ([]string, [][]*string, error) {
	tables, err := e.tableFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	tables = referencedTables(sqlText, tables)

	workDir, err := os.MkdirTemp("", "genbi-query-")
	if err != nil {
		return nil, nil, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	db.SetMaxOpenConns(1)

	for _, tableName := range sortedKeys(tables) {
		loadSQL, err := e.stageTable(ctx, workDir, tableName, tables[tableName])
		if err != nil {
			return nil, nil, err
		}
		if _, err := db.ExecContext(ctx, loadSQL); err != nil {
			return nil, nil, fmt.Errorf("load table %q: %w", tableName, err)
		}
	}
	// Staged tables are in memory now; the statement itself must not reach
	// the host filesystem or network.
	for _, statement := range lockdownStatements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return nil, nil, fmt.Errorf("restrict local engine: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]*string, 0)
	for rows.Next() && len(resultRows) < MaxStoredRows {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, stringifyValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

func (e *Engine) tableFiles(ctx context.Context) (map[string][]tableFile, error) {
	objects, err := e.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list table files: %w", err)
	}
	tables := map[string][]tableFile{}
	for _, object := range objects {
		tableName, format, ok := storage.ParseTableFile(object.Key)
		if !ok {
			continue
		}
		tables[tableName] = append(tables[tableName], tableFile{key: object.Key, format: format, size: object.Size})
	}
	return tables, nil
}

var lockdownStatements = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

// stageTable copies the table's files into workDir and returns the statement
// loading them into an in-memory table. A table mixing CSV and Parquet files
// uses the format of its first file.
func (e *Engine) stageTable(ctx context.Context, workDir, tableName string, files []tableFile) (string, error) {
	localPaths := make([]string, 0, len(files))
	format := files[0].format
	for index, file := range files {
		if file.format != format {
			continue
		}
		reader, err := e.store.Get(ctx, file.key)
		if err != nil {
			return "", fmt.Errorf("get object %q: %w", file.key, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.%s", sanitizeFileComponent(tableName), index, format))
		if err := stageObject(localPath, reader, file.size); err != nil {
			_ = reader.Close()
			return "", fmt.Errorf("write local file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return "", fmt.Errorf("close object %q: %w", file.key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	switch format {
	case storage.FormatCSV:
		return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header = true)`, quoteIdent(tableName), quoteStringArray(localPaths)), nil
	default:
		return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths)), nil
	}
}

// referencedTables keeps the tables whose name appears as a word in sqlText.
func referencedTables(sqlText string, tables map[string][]tableFile) map[string][]tableFile {
	lowered := strings.ToLower(sqlText)
	out := map[string][]tableFile{}
	for tableName, files := range tables {
		pattern := `(^|[^a-z0-9_])` + regexp.QuoteMeta(strings.ToLower(tableName)) + `($|[^a-z0-9_])`
		if regexp.MustCompile(pattern).MatchString(lowered) {
			out[tableName] = files
		}
	}
	return out
}

func sortedKeys(tables map[string][]tableFile) []string {
	keys := make([]string, 0, len(tables))
	for key := range tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

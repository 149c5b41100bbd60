package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/radio-ingest/internal/columnar"
)

const (
	maxBatchSize = 100

	// maxBatchSizeLimit keeps a single insert statement under the SQLite
	// host parameter limit
	maxBatchSizeLimit = 32766 / frameValuesPerRow
)

// WithMaxBatchSize sets the maximum number of rows inserted by a single statement
func WithMaxBatchSize(size int) func(*SqliteCatalog) {
	return func(s *SqliteCatalog) {
		s.maxBatchSize = max(1, min(size, maxBatchSizeLimit))
	}
}

// SqliteCatalog implements Catalog using a Sqlite database file
type SqliteCatalog struct {
	dbPath       string
	maxBatchSize int

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Catalog = (*SqliteCatalog)(nil)

// NewSqliteCatalog creates a new catalog backed by the database file at dbPath.
// The file and its schema are created on first use.
func NewSqliteCatalog(dbPath string, options ...func(*SqliteCatalog)) *SqliteCatalog {
	s := SqliteCatalog{
		dbPath:       dbPath,
		maxBatchSize: maxBatchSize,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteCatalog) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // Sqlite allows a single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteCatalog) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// the schema must exist before the database can be opened read-only
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteCatalog) CreateNamespace(ctx context.Context, name string) (err error) {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidIdent)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, insertNamespaceSQL, name, time.Now().UTC().UnixMicro()); err != nil {
		return fmt.Errorf("inserting namespace: %w", err)
	}
	return nil
}

func (s *SqliteCatalog) CreateTable(ctx context.Context, ident TableIdent) (table *Table, err error) {
	if err = ident.Validate(); err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("beginning transaction: %w", err)
		return
	}
	defer rollbackWithError(tx, &err)

	var n int
	if err = tx.QueryRowContext(ctx, selectNamespaceSQL, ident.Namespace).Scan(&n); err != nil {
		err = fmt.Errorf("querying namespace: %w", err)
		return
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrNamespaceNotFound, ident.Namespace)
		return
	}

	createdAt := time.Now().UTC()
	schema := columnar.Schema().String()

	result, err := tx.ExecContext(ctx, insertTableSQL, ident.Namespace, ident.Name, schema, createdAt.UnixMicro())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			err = fmt.Errorf("%w: %s", ErrTableExists, ident)
			return
		}
		err = fmt.Errorf("inserting table: %w", err)
		return
	}

	id, err := result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting table ID: %w", err)
		return
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
		return
	}

	return &Table{
		ID:        id,
		Ident:     ident,
		Schema:    schema,
		CreatedAt: time.UnixMicro(createdAt.UnixMicro()).UTC(),
	}, nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadTable(ctx context.Context, q queryRower, ident TableIdent) (*Table, error) {
	var table Table
	var createdAt int64
	err := q.QueryRowContext(ctx, selectTableSQL, ident.Namespace, ident.Name).
		Scan(&table.ID, &table.Ident.Namespace, &table.Ident.Name, &table.Schema, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, ident)
		}
		return nil, fmt.Errorf("scanning table: %w", err)
	}

	table.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &table, nil
}

func (s *SqliteCatalog) LoadTable(ctx context.Context, ident TableIdent) (*Table, error) {
	if err := ident.Validate(); err != nil {
		return nil, err
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	return loadTable(ctx, db, ident)
}

func (s *SqliteCatalog) TableExists(ctx context.Context, ident TableIdent) (bool, error) {
	if _, err := s.LoadTable(ctx, ident); err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SqliteCatalog) AppendBatch(ctx context.Context, ident TableIdent, batch arrow.Record) (snapshot *Snapshot, err error) {
	cols, err := columnar.ColumnsOf(batch)
	if err != nil {
		err = fmt.Errorf("validating batch: %w", err)
		return
	}

	numRows := int(batch.NumRows())
	if numRows == 0 {
		err = ErrEmptyBatch
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("beginning transaction: %w", err)
		return
	}
	defer rollbackWithError(tx, &err)

	table, err := loadTable(ctx, tx, ident)
	if err != nil {
		return
	}

	snapshotID, err := uuid.NewV7()
	if err != nil {
		err = fmt.Errorf("generating snapshot ID: %w", err)
		return
	}

	var sequence int64
	if err = tx.QueryRowContext(ctx, selectNextSequenceSQL, table.ID).Scan(&sequence); err != nil {
		err = fmt.Errorf("querying snapshot sequence: %w", err)
		return
	}

	committedAt := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, insertSnapshotSQL, snapshotID, table.ID, sequence, numRows, committedAt.UnixMicro()); err != nil {
		err = fmt.Errorf("inserting snapshot: %w", err)
		return
	}

	values := make([]any, 0, min(numRows, s.maxBatchSize)*frameValuesPerRow)
	for start := 0; start < numRows; start += s.maxBatchSize {
		end := min(start+s.maxBatchSize, numRows)

		var sb strings.Builder
		sb.WriteString(insertFramesSQL)

		values = values[:0]
		for i := start; i < end; i++ {
			values = appendFrameValues(values, table.ID, snapshotID, cols, i)

			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString(frameValuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			err = fmt.Errorf("batch inserting frames: %w", err)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
		return
	}

	return &Snapshot{
		ID:          snapshotID,
		Table:       ident,
		Sequence:    sequence,
		Rows:        int64(numRows),
		CommittedAt: time.UnixMicro(committedAt.UnixMicro()).UTC(),
	}, nil
}

func (s *SqliteCatalog) Snapshots(ctx context.Context, ident TableIdent) (snapshots []*Snapshot, err error) {
	table, err := s.LoadTable(ctx, ident)
	if err != nil {
		return
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSnapshotsSQL, table.ID)
	if err != nil {
		err = fmt.Errorf("querying snapshots: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		snap := Snapshot{Table: ident}
		var committedAt int64
		if err = rows.Scan(&snap.ID, &snap.Sequence, &snap.Rows, &committedAt); err != nil {
			err = fmt.Errorf("scanning snapshot: %w", err)
			return
		}
		snap.CommittedAt = time.UnixMicro(committedAt).UTC()
		snapshots = append(snapshots, &snap)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating snapshots: %w", err)
	}
	return
}

// ReadFrames creates a new SqliteFrameReader over the rows of a table in
// commit order, optionally filtered. The returned reader must be closed after
// use to release database resources.
func (s *SqliteCatalog) ReadFrames(ctx context.Context, ident TableIdent, opts ...ReaderOption) (FrameReader, error) {
	table, err := s.LoadTable(ctx, ident)
	if err != nil {
		return nil, err
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	r, err := newSqliteFrameReader(ctx, db, table, opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SqliteCatalog) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

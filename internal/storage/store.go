package storage

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Catalog manages namespaced tables of frame records and accepts finished
// columnar batches. Every append is atomic: either all rows of a batch and
// its snapshot are committed, or none are.
type Catalog interface {
	// CreateNamespace registers a namespace. Creating an existing namespace is a no-op.
	CreateNamespace(ctx context.Context, name string) error

	// CreateTable registers a new table with the frame schema.
	//
	// Returns:
	//   - ErrNamespaceNotFound: if the namespace was not created beforehand
	//   - ErrTableExists: if a table with the same identifier is registered
	CreateTable(ctx context.Context, ident TableIdent) (*Table, error)

	// LoadTable returns the table registered under ident, or ErrTableNotFound.
	LoadTable(ctx context.Context, ident TableIdent) (*Table, error)

	// TableExists reports whether a table is registered under ident.
	TableExists(ctx context.Context, ident TableIdent) (bool, error)

	// AppendBatch stores all rows of batch into the table as a new snapshot.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - ident: Table to append to
	//   - batch: Columnar batch carrying the frame schema; it is not released
	//
	// Returns:
	//   - snapshot: Metadata of the committed snapshot
	//   - error: ErrSchemaMismatch, ErrEmptyBatch, ErrTableNotFound or a storage failure
	AppendBatch(ctx context.Context, ident TableIdent, batch arrow.Record) (*Snapshot, error)

	// Snapshots lists committed snapshots of a table in commit order.
	Snapshots(ctx context.Context, ident TableIdent) ([]*Snapshot, error)

	// ReadFrames returns a reader over the rows of a table in commit order.
	//
	// Parameters:
	//   - ctx: Context for the underlying query
	//   - ident: Table to read from
	//   - opts: Optional device, time range and snapshot filters
	//
	// Returns:
	//   - reader: Must be closed after use
	//   - error: ErrTableNotFound, an invalid filter or a storage failure
	ReadFrames(ctx context.Context, ident TableIdent, opts ...ReaderOption) (FrameReader, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

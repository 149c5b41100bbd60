package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidIdent is returned when a table identifier is incomplete
	ErrInvalidIdent = errors.New("invalid table identifier")

	// ErrNamespaceNotFound is returned when a table is created in an unknown namespace
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrTableExists is returned when a table with the same identifier already exists
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound is returned when no table matches an identifier
	ErrTableNotFound = errors.New("table not found")

	// ErrEmptyBatch is returned when appending a batch without rows
	ErrEmptyBatch = errors.New("empty batch")
)

// TableIdent identifies a table by namespace and name
type TableIdent struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// NewTableIdent creates a validated table identifier
func NewTableIdent(namespace, name string) (TableIdent, error) {
	ident := TableIdent{Namespace: namespace, Name: name}
	if err := ident.Validate(); err != nil {
		return TableIdent{}, err
	}
	return ident, nil
}

// ParseTableIdent parses a "namespace.table" identifier
func ParseTableIdent(s string) (TableIdent, error) {
	namespace, name, ok := strings.Cut(s, ".")
	if !ok {
		return TableIdent{}, fmt.Errorf("%w: '%s' is not in namespace.table form", ErrInvalidIdent, s)
	}
	return NewTableIdent(namespace, name)
}

// Validate checks that both parts of the identifier are set
func (t TableIdent) Validate() error {
	if strings.TrimSpace(t.Namespace) == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidIdent)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidIdent)
	}
	return nil
}

func (t TableIdent) String() string {
	return t.Namespace + "." + t.Name
}

// Table describes a table registered in the catalog
type Table struct {
	ID        int64      `json:"ID"`        // Catalog-internal identifier
	Ident     TableIdent `json:"ident"`     // Namespace and name
	Schema    string     `json:"schema"`    // Textual form of the columnar schema the table was created with
	CreatedAt time.Time  `json:"createdAt"` // When the table was created
}

// Snapshot describes a single committed append to a table
type Snapshot struct {
	ID          uuid.UUID  `json:"ID"`          // Time-ordered unique identifier
	Table       TableIdent `json:"table"`       // Table the snapshot belongs to
	Sequence    int64      `json:"sequence"`    // 1-based commit order within the table
	Rows        int64      `json:"rows"`        // Number of rows appended
	CommittedAt time.Time  `json:"committedAt"` // When the append was committed
}

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no document exists under the requested ID.
var ErrNotFound = errors.New("record not found")

// ErrInvalid marks a document that failed basic field validation.
var ErrInvalid = errors.New("invalid record")

// Doc constrains a collection's element to a pointer type implementing Entity.
type Doc[T any] interface {
	Entity
	*T
}

// Collection is a typed document collection stored as JSON rows in sqlite.
// Registry data has no invariants beyond field validation, so the documents
// round-trip through encoding/json rather than per-field columns.
type Collection[T any, PT Doc[T]] struct {
	db    *sql.DB
	table string
}

func newCollection[T any, PT Doc[T]](db *sql.DB, table string) (*Collection[T, PT], error) {
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return &Collection[T, PT]{db: db, table: table}, nil
}

// Create validates and inserts doc, assigning an ID and creation timestamp
// when absent. The stored document is the source of truth; the id column only
// serves lookups.
func (c *Collection[T, PT]) Create(ctx context.Context, doc PT) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.EntityID() == "" {
		doc.SetEntityID(uuid.NewString())
	}
	now := time.Now().UTC().Format(time.RFC3339)
	doc.SetCreatedAt(now)

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc, created_at) VALUES (?, ?, ?)`, c.table),
		doc.EntityID(), string(raw), now)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.table, err)
	}
	return nil
}

// Get returns the document stored under id.
func (c *Collection[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, c.table), id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", c.table, err)
	}

	doc := PT(new(T))
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// List returns all documents, newest first.
func (c *Collection[T, PT]) List(ctx context.Context) ([]PT, error) {
	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s ORDER BY created_at DESC, rowid DESC`, c.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.table, err)
	}
	defer rows.Close()

	docs := make([]PT, 0, 16)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", c.table, err)
		}
		doc := PT(new(T))
		if err := json.Unmarshal([]byte(raw), doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", c.table, err)
	}
	return docs, nil
}

// Update validates and replaces the document stored under id.
func (c *Collection[T, PT]) Update(ctx context.Context, id string, doc PT) error {
	doc.SetEntityID(id)
	if err := doc.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, c.table), string(raw), id)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document stored under id.
func (c *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Registry bundles the sanitation CRUD collections over one sqlite database.
type Registry struct {
	db *sql.DB

	Wards       *Collection[Ward, *Ward]
	Supervisors *Collection[Supervisor, *Supervisor]
	Vehicles    *Collection[Vehicle, *Vehicle]
	Fuel        *Collection[FuelRecord, *FuelRecord]
	Waste       *Collection[WasteCollection, *WasteCollection]
	Defects     *Collection[MachineryDefect, *MachineryDefect]
	Centers     *Collection[WealthCenter, *WealthCenter]
}

// Open opens (creating if needed) the registry database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// table-lock errors and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	r := &Registry{db: db}
	if r.Wards, err = newCollection[Ward, *Ward](db, "wards"); err != nil {
		return nil, err
	}
	if r.Supervisors, err = newCollection[Supervisor, *Supervisor](db, "supervisors"); err != nil {
		return nil, err
	}
	if r.Vehicles, err = newCollection[Vehicle, *Vehicle](db, "vehicles"); err != nil {
		return nil, err
	}
	if r.Fuel, err = newCollection[FuelRecord, *FuelRecord](db, "fuel_records"); err != nil {
		return nil, err
	}
	if r.Waste, err = newCollection[WasteCollection, *WasteCollection](db, "waste_collections"); err != nil {
		return nil, err
	}
	if r.Defects, err = newCollection[MachineryDefect, *MachineryDefect](db, "machinery_defects"); err != nil {
		return nil, err
	}
	if r.Centers, err = newCollection[WealthCenter, *WealthCenter](db, "wealth_centers"); err != nil {
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Package sqlstore persists entity collections in a relational database. Tables and columns are
// the snake_case forms of entity and field names; see migrations for the DDL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/entity"
	"github.com/duckmesh/askhr/internal/schema"
	"github.com/duckmesh/askhr/internal/store"
)

type dbTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	catalog *schema.Catalog
}

// New wraps an open database. The catalog supplies field types used to convert driver values
// back to canonical record values.
func New(db *sql.DB, dialect Dialect, catalog *schema.Catalog) *Store {
	return &Store{db: db, dialect: dialect, catalog: catalog}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store db: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func columnList(binding *entity.Binding) string {
	names := binding.FieldNames()
	columns := make([]string, len(names))
	for i, name := range names {
		columns[i] = store.SnakeCase(name)
	}
	return strings.Join(columns, ", ")
}

func (s *Store) selectSQL(binding *entity.Binding, lock bool) string {
	text := "SELECT " + columnList(binding) +
		" FROM " + store.TableName(binding.Entity()) +
		" WHERE " + store.SnakeCase(store.TenantField) + " = " + s.dialect.Placeholder(1)
	if pk := binding.PrimaryKeyField(); pk != "" {
		text += " ORDER BY " + store.SnakeCase(pk)
	}
	if lock {
		text += s.dialect.LockClause()
	}
	return text
}

func (s *Store) Load(ctx context.Context, tenant uuid.UUID, binding *entity.Binding) ([]any, error) {
	return s.load(ctx, s.db, tenant, binding, false)
}

// load reads every row before returning so the connection is free for follow-up statements in
// the same transaction.
func (s *Store) load(ctx context.Context, tx dbTX, tenant uuid.UUID, binding *entity.Binding, lock bool) ([]any, error) {
	rows, err := tx.QueryContext(ctx, s.selectSQL(binding, lock), tenant)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", binding.Entity(), err)
	}
	defer func() { _ = rows.Close() }()

	names := binding.FieldNames()
	var records []any
	for rows.Next() {
		values := make([]any, len(names))
		targets := make([]any, len(names))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", binding.Entity(), err)
		}
		record := binding.New()
		for i, name := range names {
			value, err := s.canonical(binding.Entity(), name, values[i])
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", binding.Entity(), err)
			}
			if err := binding.Set(record, name, value); err != nil {
				return nil, fmt.Errorf("scan %s: %w", binding.Entity(), err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", binding.Entity(), err)
	}
	return records, nil
}

func (s *Store) canonical(entityName, fieldName string, raw any) (any, error) {
	field, ok := s.catalog.Field(entityName, fieldName)
	if !ok {
		return raw, nil
	}
	return field.Coerce(raw)
}

func (s *Store) Insert(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, record any) error {
	if binding.Has(store.TenantField) {
		if err := binding.Set(record, store.TenantField, tenant); err != nil {
			return fmt.Errorf("stamp tenant: %w", err)
		}
	}
	names := binding.FieldNames()
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = s.dialect.Placeholder(i + 1)
		args[i], _ = binding.Get(record, name)
	}
	text := "INSERT INTO " + store.TableName(binding.Entity()) +
		" (" + columnList(binding) + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	if _, err := s.db.ExecContext(ctx, text, args...); err != nil {
		return fmt.Errorf("insert %s: %w", binding.Entity(), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, match store.Matcher, apply store.Mutator) (int, error) {
	pk := binding.PrimaryKeyField()
	if pk == "" {
		return 0, fmt.Errorf("update %s: entity has no primary key", binding.Entity())
	}
	var writable []string
	for _, name := range binding.FieldNames() {
		if strings.EqualFold(name, pk) || strings.EqualFold(name, store.TenantField) {
			continue
		}
		writable = append(writable, name)
	}
	assignments := make([]string, len(writable))
	for i, name := range writable {
		assignments[i] = store.SnakeCase(name) + " = " + s.dialect.Placeholder(i+1)
	}
	text := "UPDATE " + store.TableName(binding.Entity()) +
		" SET " + strings.Join(assignments, ", ") +
		" WHERE " + store.SnakeCase(store.TenantField) + " = " + s.dialect.Placeholder(len(writable)+1) +
		" AND " + store.SnakeCase(pk) + " = " + s.dialect.Placeholder(len(writable)+2)

	affected := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		records, err := s.load(ctx, tx, tenant, binding, true)
		if err != nil {
			return err
		}
		for _, record := range records {
			if !match(record) {
				continue
			}
			if err := apply(record); err != nil {
				return fmt.Errorf("update %s: %w", binding.Entity(), err)
			}
			args := make([]any, 0, len(writable)+2)
			for _, name := range writable {
				value, _ := binding.Get(record, name)
				args = append(args, value)
			}
			args = append(args, tenant, binding.PrimaryKey(record))
			if _, err := tx.ExecContext(ctx, text, args...); err != nil {
				return fmt.Errorf("update %s: %w", binding.Entity(), err)
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *Store) Delete(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, match store.Matcher) (int, error) {
	pk := binding.PrimaryKeyField()
	if pk == "" {
		return 0, fmt.Errorf("delete %s: entity has no primary key", binding.Entity())
	}
	text := "DELETE FROM " + store.TableName(binding.Entity()) +
		" WHERE " + store.SnakeCase(store.TenantField) + " = " + s.dialect.Placeholder(1) +
		" AND " + store.SnakeCase(pk) + " = " + s.dialect.Placeholder(2)

	affected := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		records, err := s.load(ctx, tx, tenant, binding, true)
		if err != nil {
			return err
		}
		for _, record := range records {
			if !match(record) {
				continue
			}
			if _, err := tx.ExecContext(ctx, text, tenant, binding.PrimaryKey(record)); err != nil {
				return fmt.Errorf("delete %s: %w", binding.Entity(), err)
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
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

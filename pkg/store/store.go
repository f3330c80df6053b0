package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/richard-senior/football-analyzer/internal/logger"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no row matches a primary key
var ErrNotFound = errors.New("record not found")

// Persistable is implemented by structs stored with this package.
// Columns are declared with struct tags:
//
//	ID string `column:"id" dbtype:"TEXT" primary:"true"`
//	At int64  `column:"created_at" dbtype:"INTEGER NOT NULL" index:"true"`
//
// Fields without a dbtype tag are not stored.
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
}

// BeforeSaver may be implemented to validate or fill fields before a save
type BeforeSaver interface {
	BeforeSave() error
}

// Store is a sqlite database holding Persistable records
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
// ":memory:" gives a private in memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer, and every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("Failed to set busy timeout", err)
	}
	logger.Info("Database initialized successfully", path)
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable creates a table and its indexes for the given object using struct tags
func (s *Store) CreateTable(ctx context.Context, obj Persistable) error {
	tableName := obj.GetTableName()
	createSQL := generateCreateTableSQL(obj, tableName)
	logger.Debug("Creating table with SQL", createSQL)

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", tableName, err)
		}
	}
	return nil
}

// Save persists the object (INSERT or UPDATE on its primary key)
func (s *Store) Save(ctx context.Context, obj Persistable) error {
	if bs, ok := obj.(BeforeSaver); ok {
		if err := bs.BeforeSave(); err != nil {
			return fmt.Errorf("before save hook failed: %w", err)
		}
	}

	tableName := obj.GetTableName()
	fields := persistedFields(obj)

	var columns, placeholders, updates []string
	var values []any
	var primary []string
	for _, f := range fields {
		columns = append(columns, f.column)
		placeholders = append(placeholders, "?")
		values = append(values, f.value.Interface())
		if f.primary {
			primary = append(primary, f.column)
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", f.column, f.column))
		}
	}
	if len(primary) == 0 {
		return fmt.Errorf("table %s has no primary key", tableName)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if len(updates) > 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(primary, ", "), strings.Join(updates, ", "))
	} else {
		query += " ON CONFLICT DO NOTHING"
	}
	logger.Debug("Save SQL", query)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to save into %s: %w", tableName, err)
	}
	return nil
}

// Exists checks if the object exists in the database
func (s *Store) Exists(ctx context.Context, obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause)

	var count int
	if err := s.db.QueryRowContext(ctx, query, values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// Delete removes the object from the database
func (s *Store) Delete(ctx context.Context, obj Persistable) error {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tableName, err)
	}
	return nil
}

// FindByPrimaryKey fills obj with the row matching primaryKey, or returns ErrNotFound
func (s *Store) FindByPrimaryKey(ctx context.Context, obj Persistable, primaryKey map[string]any) error {
	tableName := obj.GetTableName()
	columns, destinations := getSelectData(obj)
	whereClause, values := buildWhereClause(primaryKey)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindByPrimaryKey SQL", query)

	err := s.db.QueryRowContext(ctx, query, values...).Scan(destinations...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w in %s", ErrNotFound, tableName)
	}
	if err != nil {
		return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
	}
	return nil
}

// FindWhere returns new objects of obj's type for every row matching whereClause.
// The clause may carry ORDER BY and LIMIT.
func FindWhere[T any, PT interface {
	*T
	Persistable
}](ctx context.Context, s *Store, whereClause string, args ...any) ([]*T, error) {
	probe := PT(new(T))
	tableName := probe.GetTableName()
	columns, _ := getSelectData(probe)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindWhere SQL", query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	var results []*T
	for rows.Next() {
		obj := new(T)
		_, destinations := getSelectData(obj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, obj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

type persistedField struct {
	column  string
	dbType  string
	primary bool
	index   bool
	value   reflect.Value
}

// persistedFields lists the exported fields carrying a dbtype tag, in declaration order
func persistedFields(obj any) []persistedField {
	objValue := reflect.ValueOf(obj)
	if objValue.Kind() == reflect.Ptr {
		objValue = objValue.Elem()
	}
	objType := objValue.Type()

	var fields []persistedField
	for i := 0; i < objType.NumField(); i++ {
		field := objType.Field(i)
		if !field.IsExported() {
			continue
		}
		dbType := field.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		columnName := field.Tag.Get("column")
		if columnName == "" {
			columnName = strings.ToLower(field.Name)
		}
		fields = append(fields, persistedField{
			column:  columnName,
			dbType:  dbType,
			primary: field.Tag.Get("primary") == "true",
			index:   field.Tag.Get("index") == "true",
			value:   objValue.Field(i),
		})
	}
	return fields
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func generateCreateTableSQL(obj any, tableName string) string {
	var columns, primaryKeys []string
	for _, f := range persistedFields(obj) {
		columns = append(columns, fmt.Sprintf("%s %s", f.column, f.dbType))
		if f.primary {
			primaryKeys = append(primaryKeys, f.column)
		}
	}
	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj any, tableName string) []string {
	var indexSQL []string
	for _, f := range persistedFields(obj) {
		if !f.index {
			continue
		}
		indexName := fmt.Sprintf("idx_%s_%s", tableName, f.column)
		indexSQL = append(indexSQL, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", indexName, tableName, f.column))
	}
	return indexSQL
}

// getSelectData extracts column names and scan destinations for SELECT
func getSelectData(obj any) ([]string, []any) {
	var columns []string
	var destinations []any
	for _, f := range persistedFields(obj) {
		columns = append(columns, f.column)
		destinations = append(destinations, f.value.Addr().Interface())
	}
	return columns, destinations
}

// buildWhereClause builds a WHERE clause from a primary key map, columns in sorted order
func buildWhereClause(primaryKey map[string]any) (string, []any) {
	columns := make([]string, 0, len(primaryKey))
	for column := range primaryKey {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	conditions := make([]string, 0, len(columns))
	values := make([]any, 0, len(columns))
	for _, column := range columns {
		conditions = append(conditions, fmt.Sprintf("%s = ?", column))
		values = append(values, primaryKey[column])
	}
	return strings.Join(conditions, " AND "), values
}

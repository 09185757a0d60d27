// Package source reads catalog products (sku, image, names) from a
// relational table. PostgreSQL (lib/pq) and SQLite (go-sqlite3) are
// supported; the two differ only in placeholders and column introspection.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Product is one catalog row. SKU is read as text whatever its column type.
type Product struct {
	SKU   string `json:"sku"`
	Image string `json:"image"`
	Names string `json:"names"`
}

type Column struct {
	Name       string `json:"column_name"`
	DataType   string `json:"data_type"`
	IsNullable string `json:"is_nullable"`
}

type TableInfo struct {
	TableName string   `json:"table_name"`
	TotalRows int      `json:"total_rows"`
	Columns   []Column `json:"columns"`
}

// Source is the catalog the sync job reads from.
type Source interface {
	Name() string
	FetchRecords(ctx context.Context, limit, offset int) ([]Product, error)
	FetchBySKU(ctx context.Context, sku string) ([]Product, error)
	Count(ctx context.Context) (int, error)
	TableInfo(ctx context.Context) (*TableInfo, error)
	Ping(ctx context.Context) error
}

type dialect struct {
	placeholder func(n int) string
	columns     string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		columns: `SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_name = $1
			ORDER BY ordinal_position`,
	},
	DriverSQLite: {
		placeholder: func(int) string { return "?" },
		columns: `SELECT name, type, CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END
			FROM pragma_table_info(?)
			ORDER BY cid`,
	},
}

type SQLSource struct {
	db      *sql.DB
	driver  string
	dialect dialect
	table   string
	name    string
	logger  *slog.Logger
}

// New wraps an open database. The table name is interpolated into queries,
// so it must be a plain (optionally schema-qualified) identifier.
func New(db *sql.DB, driver, table, name string) (*SQLSource, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, apperrors.Invalid("unsupported source driver %q", driver)
	}
	if !tableName.MatchString(table) {
		return nil, apperrors.Invalid("invalid source table name %q", table)
	}
	if name == "" {
		name = table
	}
	return &SQLSource{
		db:      db,
		driver:  driver,
		dialect: d,
		table:   table,
		name:    name,
		logger:  slog.Default().With("component", "catalog-source", "driver", driver, "table", table),
	}, nil
}

// OpenSQLite opens a SQLite catalog file. ":memory:" is accepted for tests;
// its pool is pinned to one connection so every query sees the same database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite catalog %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *SQLSource) Name() string { return s.name }

func (s *SQLSource) selectProducts() string {
	return fmt.Sprintf(`SELECT COALESCE(CAST(sku AS TEXT), ''), COALESCE(CAST(image AS TEXT), ''), COALESCE(CAST(names AS TEXT), '') FROM %s`, s.table)
}

// FetchRecords returns one page ordered by sku. A non-positive limit reads
// every row from offset on.
func (s *SQLSource) FetchRecords(ctx context.Context, limit, offset int) ([]Product, error) {
	query := s.selectProducts() + " ORDER BY sku"
	var args []any
	if limit > 0 {
		query += " LIMIT " + s.dialect.placeholder(len(args)+1)
		args = append(args, limit)
	} else if s.driver == DriverSQLite && offset > 0 {
		query += " LIMIT -1"
	}
	if offset > 0 {
		query += " OFFSET " + s.dialect.placeholder(len(args)+1)
		args = append(args, offset)
	}
	products, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched products", "count", len(products), "limit", limit, "offset", offset)
	return products, nil
}

// FetchBySKU returns every row with the given sku; one sku can have several
// images.
func (s *SQLSource) FetchBySKU(ctx context.Context, sku string) ([]Product, error) {
	query := s.selectProducts() + " WHERE CAST(sku AS TEXT) = " + s.dialect.placeholder(1) + " ORDER BY image"
	return s.query(ctx, query, sku)
}

func (s *SQLSource) query(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("querying products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.SKU, &p.Image, &p.Names); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterating products", err)
	}
	return products, nil
}

func (s *SQLSource) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n)
	if err != nil {
		return 0, s.wrap("counting products", err)
	}
	return n, nil
}

func (s *SQLSource) TableInfo(ctx context.Context) (*TableInfo, error) {
	bare := s.table
	if m := tableName.FindStringSubmatchIndex(s.table); m != nil && m[2] >= 0 {
		bare = s.table[m[2]+1 : m[3]]
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.columns, bare)
	if err != nil {
		return nil, s.wrap("reading table columns", err)
	}
	defer rows.Close()

	info := &TableInfo{TableName: s.table, Columns: []Column{}}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterating columns", err)
	}
	if info.TotalRows, err = s.Count(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.wrap("pinging catalog", err)
	}
	return nil
}

// wrap tags connection-level failures as ErrSourceUnavailable so callers map
// them to 503 and the circuit breaker counts them.
func (s *SQLSource) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrSourceUnavailable, err)
}

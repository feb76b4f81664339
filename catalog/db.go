package catalog

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Table names used by raw queries.
const (
	TableCars         = "cars"
	TableImages       = "car_images"
	TableTranslations = "car_translations"
)

// Open connects to driver/dsn and wraps the pool with the matching bun dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverSQLite, "sqlite":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		// sqlite serializes writers; a single connection also keeps
		// shared in-memory databases alive.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	return nil, errors.Newf("unsupported database driver %q", driver)
}

// CreateSchema creates the catalog tables and indexes if they do not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*Car)(nil),
		(*CarImage)(nil),
		(*CarTranslation)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return storageError(err, "create table")
		}
	}

	indexes := []struct {
		name  string
		model any
		cols  []string
	}{
		{"cars_created_at_idx", (*Car)(nil), []string{"created_at"}},
		{"cars_make_model_idx", (*Car)(nil), []string{"make", "model"}},
		{"cars_status_idx", (*Car)(nil), []string{"is_sold", "is_incoming", "is_reserved"}},
		{"car_images_car_id_idx", (*CarImage)(nil), []string{"car_id"}},
		{"car_translations_car_id_idx", (*CarTranslation)(nil), []string{"car_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.cols...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return storageError(err, "create index")
		}
	}
	return nil
}

package testsupport

import (
	"context"
	_ "embed"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inventory-cache/catalog"
)

//go:embed testdata/cars.json
var carsFixture []byte

// Fixture car ids, in fixture order.
const (
	AudiA4ID        = "0b6a4d8e-1f2a-4c3b-9d01-000000000001"
	BMW320dID       = "0b6a4d8e-1f2a-4c3b-9d01-000000000002"
	ToyotaCorollaID = "0b6a4d8e-1f2a-4c3b-9d01-000000000003"
	VWGolfID        = "0b6a4d8e-1f2a-4c3b-9d01-000000000004"
	AudiQ5ID        = "0b6a4d8e-1f2a-4c3b-9d01-000000000005"
	FordFocusID     = "0b6a4d8e-1f2a-4c3b-9d01-000000000006"
	SkodaOctaviaID  = "0b6a4d8e-1f2a-4c3b-9d01-000000000007"
	TeslaModel3ID   = "0b6a4d8e-1f2a-4c3b-9d01-000000000008"
)

// FixtureCarsJSON returns the raw car fixture.
func FixtureCarsJSON() []byte {
	return append([]byte(nil), carsFixture...)
}

// FixtureCars decodes a fresh copy of the car fixture. Every car in it
// has "metallic" in its color, so that term matches the whole set.
func FixtureCars(t testing.TB) []*catalog.Car {
	t.Helper()

	var cars []*catalog.Car
	if err := json.Unmarshal(carsFixture, &cars); err != nil {
		t.Fatalf("failed to decode car fixture: %v", err)
	}
	return cars
}

// OpenDB returns an in-memory SQLite database with the catalog schema.
// The database is closed when the test ends.
func OpenDB(t testing.TB) *bun.DB {
	t.Helper()

	db, err := catalog.Open(catalog.DriverSQLite, "file::memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := catalog.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// SeedCars inserts cars and their relations directly, bypassing every cache.
func SeedCars(t testing.TB, db bun.IDB, cars []*catalog.Car) {
	t.Helper()

	ctx := context.Background()
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, car := range cars {
			if car.ID == uuid.Nil {
				car.ID = uuid.New()
			}
			if _, err := tx.NewInsert().Model(car).Exec(ctx); err != nil {
				return err
			}
			for _, img := range car.Images {
				img.ID, img.CarID = uuid.New(), car.ID
				if _, err := tx.NewInsert().Model(img).Exec(ctx); err != nil {
					return err
				}
			}
			for _, tr := range car.Translations {
				tr.ID, tr.CarID = uuid.New(), car.ID
				if _, err := tx.NewInsert().Model(tr).Exec(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed cars: %v", err)
	}
}

// SeededDB is OpenDB followed by SeedCars with the full fixture.
func SeededDB(t testing.TB) *bun.DB {
	t.Helper()

	db := OpenDB(t)
	SeedCars(t, db, FixtureCars(t))
	return db
}

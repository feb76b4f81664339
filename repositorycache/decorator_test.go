package repositorycache

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// TestCar represents a test entity
type TestCar struct {
	ID   string `json:"id"`
	Make string `json:"make"`
}

// mockRepository records write calls. Methods not overridden belong to the
// embedded nil interface and must not be called by the tests.
type mockRepository[T any] struct {
	repository.Repository[T]

	mu          sync.Mutex
	calls       []string
	writeResult T
	writeError  error
}

func (m *mockRepository[T]) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository[T]) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	m.recordCall("Create")
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	m.recordCall("CreateTx")
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	m.recordCall("CreateMany")
	return records, m.writeError
}

func (m *mockRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	m.recordCall("GetOrCreate")
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	m.recordCall("Update")
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	m.recordCall("UpdateMany")
	return records, m.writeError
}

func (m *mockRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	m.recordCall("Upsert")
	return m.writeResult, m.writeError
}

func (m *mockRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	m.recordCall("UpsertMany")
	return records, m.writeError
}

func (m *mockRepository[T]) Delete(ctx context.Context, record T) error {
	m.recordCall("Delete")
	return m.writeError
}

func (m *mockRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	m.recordCall("DeleteMany")
	return m.writeError
}

func (m *mockRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	m.recordCall("DeleteWhere")
	return m.writeError
}

func (m *mockRepository[T]) ForceDelete(ctx context.Context, record T) error {
	m.recordCall("ForceDelete")
	return m.writeError
}

func (m *mockRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	m.recordCall("List")
	return nil, 0, nil
}

// recordingInvalidator tracks invalidation calls
type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
	clears   int
}

func (r *recordingInvalidator) Invalidate(pattern string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
	return 1
}

func (r *recordingInvalidator) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingInvalidator) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.patterns...), r.clears
}

func TestNew(t *testing.T) {
	base := &mockRepository[TestCar]{}
	inv := &recordingInvalidator{}

	repo := New[TestCar](base, inv, "cars:")
	if repo == nil {
		t.Fatal("New() returned nil")
	}
	if repo.Pattern() != "cars:" {
		t.Errorf("Pattern() = %q, want %q", repo.Pattern(), "cars:")
	}
}

func TestSingleWritesInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	car := TestCar{ID: "1", Make: "audi"}

	tests := []struct {
		name string
		call func(r *InvalidatingRepository[TestCar]) error
	}{
		{"Create", func(r *InvalidatingRepository[TestCar]) error { _, err := r.Create(ctx, car); return err }},
		{"GetOrCreate", func(r *InvalidatingRepository[TestCar]) error { _, err := r.GetOrCreate(ctx, car); return err }},
		{"Update", func(r *InvalidatingRepository[TestCar]) error { _, err := r.Update(ctx, car); return err }},
		{"Upsert", func(r *InvalidatingRepository[TestCar]) error { _, err := r.Upsert(ctx, car); return err }},
		{"Delete", func(r *InvalidatingRepository[TestCar]) error { return r.Delete(ctx, car) }},
		{"ForceDelete", func(r *InvalidatingRepository[TestCar]) error { return r.ForceDelete(ctx, car) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &mockRepository[TestCar]{writeResult: car}
			inv := &recordingInvalidator{}
			repo := New[TestCar](base, inv, "cars:")

			if err := tt.call(repo); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			patterns, clears := inv.snapshot()
			if len(patterns) != 1 || patterns[0] != "cars:" {
				t.Errorf("patterns = %v, want [cars:]", patterns)
			}
			if clears != 0 {
				t.Errorf("clears = %d, want 0", clears)
			}
			if calls := base.getCalls(); len(calls) != 1 || calls[0] != tt.name {
				t.Errorf("base calls = %v, want [%s]", calls, tt.name)
			}
		})
	}
}

func TestBulkWritesInvalidateAll(t *testing.T) {
	ctx := context.Background()
	cars := []TestCar{{ID: "1"}, {ID: "2"}}

	tests := []struct {
		name string
		call func(r *InvalidatingRepository[TestCar]) error
	}{
		{"CreateMany", func(r *InvalidatingRepository[TestCar]) error { _, err := r.CreateMany(ctx, cars); return err }},
		{"UpdateMany", func(r *InvalidatingRepository[TestCar]) error { _, err := r.UpdateMany(ctx, cars); return err }},
		{"UpsertMany", func(r *InvalidatingRepository[TestCar]) error { _, err := r.UpsertMany(ctx, cars); return err }},
		{"DeleteMany", func(r *InvalidatingRepository[TestCar]) error { return r.DeleteMany(ctx) }},
		{"DeleteWhere", func(r *InvalidatingRepository[TestCar]) error { return r.DeleteWhere(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &recordingInvalidator{}
			repo := New[TestCar](&mockRepository[TestCar]{}, inv, "cars:")

			if err := tt.call(repo); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			patterns, clears := inv.snapshot()
			if len(patterns) != 0 {
				t.Errorf("patterns = %v, want none", patterns)
			}
			if clears != 1 {
				t.Errorf("clears = %d, want 1", clears)
			}
		})
	}
}

func TestFailedWritesDoNotInvalidate(t *testing.T) {
	ctx := context.Background()
	base := &mockRepository[TestCar]{writeError: errors.New("constraint violation")}
	inv := &recordingInvalidator{}
	repo := New[TestCar](base, inv, "cars:")

	if _, err := repo.Create(ctx, TestCar{}); err == nil {
		t.Fatal("expected error from Create")
	}
	if err := repo.DeleteMany(ctx); err == nil {
		t.Fatal("expected error from DeleteMany")
	}

	patterns, clears := inv.snapshot()
	if len(patterns) != 0 || clears != 0 {
		t.Errorf("expected no invalidation, got patterns=%v clears=%d", patterns, clears)
	}
}

func TestTxWritesDeferInvalidation(t *testing.T) {
	base := &mockRepository[TestCar]{}
	inv := &recordingInvalidator{}
	repo := New[TestCar](base, inv, "cars:")

	if _, err := repo.CreateTx(context.Background(), nil, TestCar{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patterns, _ := inv.snapshot()
	if len(patterns) != 0 {
		t.Errorf("CreateTx should not invalidate, got %v", patterns)
	}
}

func TestReadsPassThrough(t *testing.T) {
	base := &mockRepository[TestCar]{}
	inv := &recordingInvalidator{}
	repo := New[TestCar](base, inv, "cars:")

	if _, _, err := repo.List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := base.getCalls(); len(calls) != 1 || calls[0] != "List" {
		t.Errorf("base calls = %v, want [List]", calls)
	}
	if patterns, clears := inv.snapshot(); len(patterns) != 0 || clears != 0 {
		t.Error("reads must not invalidate")
	}
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.ExecContext(ctx, "CREATE TABLE notes (body TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	inv := &recordingInvalidator{}
	repo := New[TestCar](&mockRepository[TestCar]{}, inv, "cars:")

	err := repo.RunInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES ('a')")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if patterns, _ := inv.snapshot(); len(patterns) != 1 {
		t.Errorf("expected one invalidation after commit, got %v", patterns)
	}

	rollback := errors.New("rollback")
	err = repo.RunInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES ('b')"); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if patterns, _ := inv.snapshot(); len(patterns) != 1 {
		t.Errorf("rolled back tx must not invalidate, got %v", patterns)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if err := repo.RunBulkInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error { return nil }); err != nil {
		t.Fatalf("RunBulkInTx: %v", err)
	}
	if _, clears := inv.snapshot(); clears != 1 {
		t.Errorf("clears = %d, want 1", clears)
	}
}

package catalog

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/cockroachdb/errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/query"
)

// CarWriter is the write side repository: every committed mutation
// invalidates the cached car family before the call returns.
type CarWriter interface {
	repository.Repository[*Car]
	RunInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error
	RunBulkInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Service implements car reads outside the listing plus every car write.
type Service struct {
	db     bun.IDB
	cars   CarWriter
	logger *zap.Logger
}

// NewService returns a Service writing through cars.
func NewService(db bun.IDB, cars CarWriter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, cars: cars, logger: logger}
}

// Get loads a car with its images and translations.
func (s *Service) Get(ctx context.Context, id string) (*Car, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	car := new(Car)
	err = s.db.NewSelect().
		Model(car).
		Where("c.id = ?", uid.String()).
		Apply(WithRelations()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError(err, "get car")
	}

	car.normalize()
	return car, nil
}

// Makes returns the distinct makes in stock, alphabetically.
func (s *Service) Makes(ctx context.Context) ([]string, error) {
	makes := []string{}
	err := s.db.NewSelect().
		Model((*Car)(nil)).
		ColumnExpr("DISTINCT c.make").
		OrderExpr("c.make ASC").
		Scan(ctx, &makes)
	if err != nil {
		return nil, storageError(err, "list makes")
	}
	return makes, nil
}

// Create validates and stores car with its relations.
func (s *Service) Create(ctx context.Context, car *Car) (*Car, error) {
	if err := car.Validate(); err != nil {
		return nil, query.FromValidation(err)
	}

	car.ensureID()
	car.attach()

	err := s.cars.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.cars.CreateTx(ctx, tx, car); err != nil {
			return err
		}
		return insertRelations(ctx, tx, car)
	})
	if err != nil {
		return nil, storageError(err, "create car")
	}

	s.logger.Info("car created", zap.String("id", car.ID.String()))
	car.normalize()
	return car, nil
}

// Update replaces the fields and relations of the car with the given id.
func (s *Service) Update(ctx context.Context, id string, car *Car) (*Car, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := car.Validate(); err != nil {
		return nil, query.FromValidation(err)
	}

	car.ID = existing.ID
	car.CreatedAt = existing.CreatedAt
	car.attach()

	err = s.cars.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.cars.UpdateTx(ctx, tx, car); err != nil {
			return err
		}
		if err := deleteRelations(ctx, tx, car.ID); err != nil {
			return err
		}
		return insertRelations(ctx, tx, car)
	})
	if err != nil {
		return nil, storageError(err, "update car")
	}

	s.logger.Info("car updated", zap.String("id", car.ID.String()))
	car.normalize()
	return car, nil
}

// Delete removes the car with the given id and its relations.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.cars.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := deleteRelations(ctx, tx, existing.ID); err != nil {
			return err
		}
		return s.cars.DeleteTx(ctx, tx, existing)
	})
	if err != nil {
		return storageError(err, "delete car")
	}

	s.logger.Info("car deleted", zap.String("id", existing.ID.String()))
	return nil
}

// Import stores cars in one transaction and clears every cache afterwards.
// Nothing is written when any car fails validation.
func (s *Service) Import(ctx context.Context, cars []*Car) (int, error) {
	if len(cars) == 0 {
		return 0, nil
	}

	fields := map[string]string{}
	for i, car := range cars {
		if car == nil {
			fields[strconv.Itoa(i)] = "must not be null"
			continue
		}
		if err := car.Validate(); err != nil {
			fields[strconv.Itoa(i)] = err.Error()
		}
	}
	if len(fields) > 0 {
		return 0, &query.ValidationError{Fields: fields}
	}

	for _, car := range cars {
		car.ensureID()
		car.attach()
	}

	err := s.cars.RunBulkInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.cars.CreateManyTx(ctx, tx, cars); err != nil {
			return err
		}
		for _, car := range cars {
			if err := insertRelations(ctx, tx, car); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageError(err, "import cars")
	}

	s.logger.Info("cars imported", zap.Int("count", len(cars)))
	return len(cars), nil
}

func insertRelations(ctx context.Context, tx bun.Tx, car *Car) error {
	if len(car.Images) > 0 {
		if _, err := tx.NewInsert().Model(&car.Images).Exec(ctx); err != nil {
			return errors.Wrap(err, "insert images")
		}
	}
	if len(car.Translations) > 0 {
		if _, err := tx.NewInsert().Model(&car.Translations).Exec(ctx); err != nil {
			return errors.Wrap(err, "insert translations")
		}
	}
	return nil
}

func deleteRelations(ctx context.Context, tx bun.Tx, carID uuid.UUID) error {
	if _, err := tx.NewDelete().Model((*CarImage)(nil)).Where("car_id = ?", carID.String()).Exec(ctx); err != nil {
		return errors.Wrap(err, "delete images")
	}
	if _, err := tx.NewDelete().Model((*CarTranslation)(nil)).Where("car_id = ?", carID.String()).Exec(ctx); err != nil {
		return errors.Wrap(err, "delete translations")
	}
	return nil
}

package catalog

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewCarRepository returns the bun backed generic repository for cars.
func NewCarRepository(db *bun.DB) repository.Repository[*Car] {
	return repository.NewRepository[*Car](db, repository.ModelHandlers[*Car]{
		NewRecord: func() *Car {
			return &Car{}
		},
		GetID: func(c *Car) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Car, id uuid.UUID) {
			c.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

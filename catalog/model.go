package catalog

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Car is a vehicle in stock. The sold, incoming and reserved flags combine
// into the stock status; see query.StatusCondition.
type Car struct {
	bun.BaseModel `bun:"table:cars,alias:c"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Make         string    `bun:"make,notnull" json:"make"`
	Model        string    `bun:"model,notnull" json:"model"`
	Year         int       `bun:"year,notnull" json:"year"`
	Price        int64     `bun:"price,notnull" json:"price"`
	Mileage      int64     `bun:"mileage,notnull" json:"mileage"`
	FuelType     string    `bun:"fuel_type" json:"fuelType"`
	Transmission string    `bun:"transmission" json:"transmission"`
	Color        string    `bun:"color" json:"color"`
	Engine       string    `bun:"engine" json:"engine"`
	BodyType     string    `bun:"body_type" json:"bodyType"`
	PlateStatus  string    `bun:"plate_status" json:"plateStatus"`
	Category     string    `bun:"category" json:"category"`
	IsSold       bool      `bun:"is_sold,notnull" json:"isSold"`
	IsIncoming   bool      `bun:"is_incoming,notnull" json:"isIncoming"`
	IsReserved   bool      `bun:"is_reserved,notnull" json:"isReserved"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updatedAt"`

	Images       []*CarImage       `bun:"rel:has-many,join:id=car_id" json:"images"`
	Translations []*CarTranslation `bun:"rel:has-many,join:id=car_id" json:"translations"`
}

// CarImage is a stored image reference. Upload and resizing happen elsewhere.
type CarImage struct {
	bun.BaseModel `bun:"table:car_images,alias:ci"`

	ID       uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CarID    uuid.UUID `bun:"car_id,notnull,type:uuid" json:"carId"`
	URL      string    `bun:"url,notnull" json:"url"`
	Position int       `bun:"position,notnull" json:"position"`
}

// CarTranslation holds the localized text of a car for one locale.
type CarTranslation struct {
	bun.BaseModel `bun:"table:car_translations,alias:ct"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CarID       uuid.UUID `bun:"car_id,notnull,type:uuid" json:"carId"`
	Locale      string    `bun:"locale,notnull" json:"locale"`
	Title       string    `bun:"title" json:"title"`
	Description string    `bun:"description" json:"description"`
}

// Relations groups the images and translations of one car.
type Relations struct {
	Images       []*CarImage       `json:"images"`
	Translations []*CarTranslation `json:"translations"`
}

var _ bun.BeforeAppendModelHook = (*Car)(nil)

// BeforeAppendModel assigns the id and timestamps.
func (c *Car) BeforeAppendModel(ctx context.Context, q bun.Query) error {
	now := time.Now().UTC()
	switch q.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// Validate checks the fields a client must supply on create and update.
func (c *Car) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Make, validation.Required, validation.Length(1, 100)),
		validation.Field(&c.Model, validation.Required, validation.Length(1, 100)),
		validation.Field(&c.Year, validation.Required, validation.Min(1900), validation.Max(2100)),
		validation.Field(&c.Price, validation.Min(int64(0))),
		validation.Field(&c.Mileage, validation.Min(int64(0))),
		validation.Field(&c.Images),
		validation.Field(&c.Translations),
	)
}

// Validate checks an image reference.
func (i *CarImage) Validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.URL, validation.Required, validation.Length(1, 2048)),
		validation.Field(&i.Position, validation.Min(0)),
	)
}

// Validate checks a translation.
func (t *CarTranslation) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Locale, validation.Required, validation.Length(2, 10)),
		validation.Field(&t.Title, validation.Length(0, 200)),
	)
}

// normalize replaces nil relation slices so every car renders the same shape.
func (c *Car) normalize() {
	if c.Images == nil {
		c.Images = []*CarImage{}
	}
	if c.Translations == nil {
		c.Translations = []*CarTranslation{}
	}
}

// ensureID keeps a client supplied id and assigns a new one otherwise.
func (c *Car) ensureID() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
}

// attach assigns ids and the owning car to every relation row.
func (c *Car) attach() {
	for _, img := range c.Images {
		if img.ID == uuid.Nil {
			img.ID = uuid.New()
		}
		img.CarID = c.ID
	}
	for _, tr := range c.Translations {
		if tr.ID == uuid.Nil {
			tr.ID = uuid.New()
		}
		tr.CarID = c.ID
	}
}

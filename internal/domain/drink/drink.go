package drink

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested drink does not exist.
	ErrNotFound = errors.New("drink not found")
	// ErrTitleTaken is returned when another drink already uses the title.
	ErrTitleTaken = errors.New("drink title already taken")
)

// Ingredient is one component of a drink recipe.
type Ingredient struct {
	Name  string
	Color string
	Parts int
}

// Drink is a menu entry. Title is unique across the menu.
type Drink struct {
	ID     int64
	Title  string
	Recipe []Ingredient
}

// Short returns the recipe without ingredient names, as shown on the public menu.
func (d Drink) Short() []Ingredient {
	short := make([]Ingredient, len(d.Recipe))
	for i, in := range d.Recipe {
		short[i] = Ingredient{Color: in.Color, Parts: in.Parts}
	}
	return short
}

// ValidationError describes why a drink cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for drinks.
type Repository interface {
	List(ctx context.Context) ([]Drink, error)
	GetByID(ctx context.Context, id int64) (*Drink, error)
	// Create stores d and assigns its ID.
	Create(ctx context.Context, d *Drink) error
	Update(ctx context.Context, d *Drink) error
	Delete(ctx context.Context, id int64) error
}

package drink

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest title the menu stores, in characters.
const MaxTitleLength = 80

// CreateRequest holds the input for adding a drink to the menu.
type CreateRequest struct {
	Title  string
	Recipe []Ingredient
}

// UpdateRequest holds a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Title  *string
	Recipe []Ingredient
}

// Service encapsulates drink menu business logic.
type Service struct {
	drinks Repository
}

// NewService creates a drink Service backed by drinks.
func NewService(drinks Repository) *Service {
	return &Service{drinks: drinks}
}

// List returns every drink on the menu.
func (s *Service) List(ctx context.Context) ([]Drink, error) {
	drinks, err := s.drinks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}
	return drinks, nil
}

// Create validates and stores a new drink.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Drink, error) {
	d := &Drink{
		Title:  strings.TrimSpace(req.Title),
		Recipe: req.Recipe,
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	if err := s.drinks.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create drink: %w", err)
	}
	return d, nil
}

// Update applies req to the drink with the given id.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Drink, error) {
	d, err := s.drinks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get drink: %w", err)
	}

	if req.Title != nil {
		d.Title = strings.TrimSpace(*req.Title)
	}
	if req.Recipe != nil {
		d.Recipe = req.Recipe
	}
	if err := validate(d); err != nil {
		return nil, err
	}

	if err := s.drinks.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update drink: %w", err)
	}
	return d, nil
}

// Delete removes the drink with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.drinks.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete drink: %w", err)
	}
	return nil
}

func validate(d *Drink) error {
	if d.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if len(d.Recipe) == 0 {
		return &ValidationError{Field: "recipe", Reason: "must contain at least one ingredient"}
	}
	for i, in := range d.Recipe {
		if strings.TrimSpace(in.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("recipe[%d].name", i), Reason: "must not be empty"}
		}
		if in.Parts < 0 {
			return &ValidationError{Field: fmt.Sprintf("recipe[%d].parts", i), Reason: "must not be negative"}
		}
	}
	return nil
}

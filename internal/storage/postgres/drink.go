package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coffee-shop/internal/domain/drink"
)

const (
	listDrinksSQL = `SELECT id, title, recipe FROM drinks ORDER BY id`

	getDrinkByIDSQL = `SELECT id, title, recipe FROM drinks WHERE id = $1`

	createDrinkSQL = `INSERT INTO drinks (title, recipe) VALUES ($1, $2) RETURNING id`

	updateDrinkSQL = `UPDATE drinks SET title = $2, recipe = $3, updated_at = now() WHERE id = $1`

	deleteDrinkSQL = `DELETE FROM drinks WHERE id = $1`
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

var _ drink.Repository = (*DrinkRepository)(nil)

// ingredientRow is the JSONB representation of a recipe entry.
type ingredientRow struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// DrinkRepository implements drink.Repository backed by PostgreSQL.
type DrinkRepository struct {
	pool *pgxpool.Pool
}

// NewDrinkRepository returns a DrinkRepository that uses the given pool.
func NewDrinkRepository(pool *pgxpool.Pool) *DrinkRepository {
	return &DrinkRepository{pool: pool}
}

// List returns all drinks ordered by ID.
func (r *DrinkRepository) List(ctx context.Context) ([]drink.Drink, error) {
	rows, err := r.pool.Query(ctx, listDrinksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing drinks: %w", err)
	}
	return pgx.CollectRows(rows, scanDrink)
}

// GetByID returns a single drink by its identifier.
func (r *DrinkRepository) GetByID(ctx context.Context, id int64) (*drink.Drink, error) {
	rows, err := r.pool.Query(ctx, getDrinkByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting drink %d: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDrink)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, drink.ErrNotFound
		}
		return nil, fmt.Errorf("getting drink %d: %w", id, err)
	}
	return &d, nil
}

// Create inserts d and sets its ID. The recipe is serialized to JSON for
// storage in the JSONB column.
func (r *DrinkRepository) Create(ctx context.Context, d *drink.Drink) error {
	recipe, err := marshalRecipe(d.Recipe)
	if err != nil {
		return err
	}

	if err := r.pool.QueryRow(ctx, createDrinkSQL, d.Title, recipe).Scan(&d.ID); err != nil {
		return mapWriteError(err, "creating drink %q", d.Title)
	}
	return nil
}

// Update overwrites the title and recipe of an existing drink.
func (r *DrinkRepository) Update(ctx context.Context, d *drink.Drink) error {
	recipe, err := marshalRecipe(d.Recipe)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateDrinkSQL, d.ID, d.Title, recipe)
	if err != nil {
		return mapWriteError(err, "updating drink %d", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return drink.ErrNotFound
	}
	return nil
}

// Delete removes a drink by its identifier.
func (r *DrinkRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteDrinkSQL, id)
	if err != nil {
		return fmt.Errorf("deleting drink %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return drink.ErrNotFound
	}
	return nil
}

func mapWriteError(err error, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return drink.ErrTitleTaken
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func marshalRecipe(recipe []drink.Ingredient) ([]byte, error) {
	rows := make([]ingredientRow, len(recipe))
	for i, in := range recipe {
		rows[i] = ingredientRow(in)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshaling recipe: %w", err)
	}
	return data, nil
}

func scanDrink(row pgx.CollectableRow) (drink.Drink, error) {
	var (
		d      drink.Drink
		recipe []byte
	)
	if err := row.Scan(&d.ID, &d.Title, &recipe); err != nil {
		return d, err
	}

	var rows []ingredientRow
	if err := json.Unmarshal(recipe, &rows); err != nil {
		return d, fmt.Errorf("unmarshaling recipe of drink %d: %w", d.ID, err)
	}
	d.Recipe = make([]drink.Ingredient, len(rows))
	for i, in := range rows {
		d.Recipe[i] = drink.Ingredient(in)
	}
	return d, nil
}

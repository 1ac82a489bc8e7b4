package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/coffee-shop/internal/auth"
	"github.com/xenking/coffee-shop/internal/domain/drink"
)

// --- Mock implementations ---

type mockDrinkRepo struct {
	drinks  map[int64]drink.Drink
	nextID  int64
	listErr error
}

func newDrinkRepo(drinks ...drink.Drink) *mockDrinkRepo {
	m := &mockDrinkRepo{drinks: make(map[int64]drink.Drink), nextID: 1}
	for _, d := range drinks {
		m.drinks[d.ID] = d
		if d.ID >= m.nextID {
			m.nextID = d.ID + 1
		}
	}
	return m
}

func (m *mockDrinkRepo) List(_ context.Context) ([]drink.Drink, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]drink.Drink, 0, len(m.drinks))
	for _, d := range m.drinks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDrinkRepo) GetByID(_ context.Context, id int64) (*drink.Drink, error) {
	d, ok := m.drinks[id]
	if !ok {
		return nil, drink.ErrNotFound
	}
	return &d, nil
}

func (m *mockDrinkRepo) Create(_ context.Context, d *drink.Drink) error {
	for _, existing := range m.drinks {
		if existing.Title == d.Title {
			return drink.ErrTitleTaken
		}
	}
	d.ID = m.nextID
	m.nextID++
	m.drinks[d.ID] = *d
	return nil
}

func (m *mockDrinkRepo) Update(_ context.Context, d *drink.Drink) error {
	if _, ok := m.drinks[d.ID]; !ok {
		return drink.ErrNotFound
	}
	m.drinks[d.ID] = *d
	return nil
}

func (m *mockDrinkRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.drinks[id]; !ok {
		return drink.ErrNotFound
	}
	delete(m.drinks, id)
	return nil
}

// tokenVerifier accepts "Bearer <perm>,<perm>..." and grants the listed permissions.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, raw string) (auth.Claims, error) {
	if raw == "invalid" {
		return nil, auth.ErrInvalidToken
	}
	perms := []any{}
	for _, p := range strings.Split(raw, ",") {
		perms = append(perms, p)
	}
	return auth.Claims{"sub": "auth0|test", "permissions": perms}, nil
}

// --- Helpers ---

func flatWhite() drink.Drink {
	return drink.Drink{
		ID:    1,
		Title: "Flat White",
		Recipe: []drink.Ingredient{
			{Name: "Espresso", Color: "brown", Parts: 1},
			{Name: "Steamed milk", Color: "white", Parts: 2},
		},
	}
}

func newTestServer(t *testing.T, repo *mockDrinkRepo) http.Handler {
	t.Helper()
	gate, err := auth.NewGate(tokenVerifier{}, noop.NewMeterProvider())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(drink.NewService(repo), gate).Register(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type ingredientJSON struct {
	Name  *string `json:"name"`
	Color string  `json:"color"`
	Parts int     `json:"parts"`
}

type drinkJSON struct {
	ID     int64            `json:"id"`
	Title  string           `json:"title"`
	Recipe []ingredientJSON `json:"recipe"`
}

type drinksResponse struct {
	Success bool        `json:"success"`
	Drinks  []drinkJSON `json:"drinks"`
}

type errorResponse struct {
	Success     bool   `json:"success"`
	Error       int    `json:"error"`
	Message     string `json:"message"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestListDrinks(t *testing.T) {
	h := newTestServer(t, newDrinkRepo(flatWhite()))

	w := do(t, h, http.MethodGet, "/drinks", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode[drinksResponse](t, w)
	assert.True(t, body.Success)
	require.Len(t, body.Drinks, 1)
	assert.Equal(t, int64(1), body.Drinks[0].ID)
	assert.Equal(t, "Flat White", body.Drinks[0].Title)
	require.Len(t, body.Drinks[0].Recipe, 2)
	for _, in := range body.Drinks[0].Recipe {
		assert.Nil(t, in.Name, "short recipe must not expose ingredient names")
	}
	assert.Equal(t, "brown", body.Drinks[0].Recipe[0].Color)
	assert.Equal(t, 2, body.Drinks[0].Recipe[1].Parts)
}

func TestListDrinks_Empty(t *testing.T) {
	h := newTestServer(t, newDrinkRepo())

	w := do(t, h, http.MethodGet, "/drinks", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestListDrinks_Error(t *testing.T) {
	repo := newDrinkRepo()
	repo.listErr = errors.New("db down")
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodGet, "/drinks", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorResponse](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, 500, body.Error)
}

func TestListDrinksDetail(t *testing.T) {
	t.Run("long recipe", func(t *testing.T) {
		h := newTestServer(t, newDrinkRepo(flatWhite()))

		w := do(t, h, http.MethodGet, "/drinks-detail", "get:drinks-detail,post:drinks", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := decode[drinksResponse](t, w)
		require.Len(t, body.Drinks, 1)
		require.NotNil(t, body.Drinks[0].Recipe[0].Name)
		assert.Equal(t, "Espresso", *body.Drinks[0].Recipe[0].Name)
	})

	t.Run("empty menu", func(t *testing.T) {
		h := newTestServer(t, newDrinkRepo())

		w := do(t, h, http.MethodGet, "/drinks-detail", "get:drinks-detail", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		h := newTestServer(t, newDrinkRepo(flatWhite()))

		w := do(t, h, http.MethodGet, "/drinks-detail", "", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode[errorResponse](t, w)
		assert.Equal(t, "authorization_header_missing", body.Code)
	})

	t.Run("permission missing", func(t *testing.T) {
		h := newTestServer(t, newDrinkRepo(flatWhite()))

		w := do(t, h, http.MethodGet, "/drinks-detail", "post:drinks", "")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
		body := decode[errorResponse](t, w)
		assert.Equal(t, "unauthorized", body.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		h := newTestServer(t, newDrinkRepo(flatWhite()))

		w := do(t, h, http.MethodGet, "/drinks-detail", "invalid", "")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
		body := decode[errorResponse](t, w)
		assert.Equal(t, "invalid_token", body.Code)
	})
}

func TestCreateDrink(t *testing.T) {
	repo := newDrinkRepo()
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodPost, "/drinks", "post:drinks",
		`{"title":"Latte","recipe":[{"name":"Espresso","color":"brown","parts":1},{"name":"Milk","color":"white","parts":3}],"extra":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[drinksResponse](t, w)
	assert.True(t, body.Success)
	require.Len(t, body.Drinks, 1)
	assert.Equal(t, "Latte", body.Drinks[0].Title)
	require.Len(t, body.Drinks[0].Recipe, 2)
	assert.Equal(t, "Milk", *body.Drinks[0].Recipe[1].Name)

	require.Len(t, repo.drinks, 1)
	assert.Equal(t, 3, repo.drinks[1].Recipe[1].Parts)
}

func TestCreateDrink_SingleIngredientObject(t *testing.T) {
	repo := newDrinkRepo()
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodPost, "/drinks", "post:drinks",
		`{"title":"Water","recipe":{"name":"Water","color":"blue","parts":1}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, repo.drinks[1].Recipe, 1)
}

func TestCreateDrink_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no permission", "get:drinks-detail", `{"title":"Latte","recipe":[{"name":"Milk"}]}`, http.StatusMethodNotAllowed},
		{"malformed json", "post:drinks", `{"title":`, http.StatusBadRequest},
		{"empty body", "post:drinks", ``, http.StatusBadRequest},
		{"recipe of wrong type", "post:drinks", `{"title":"Latte","recipe":"milk"}`, http.StatusBadRequest},
		{"missing recipe", "post:drinks", `{"title":"Latte"}`, http.StatusUnprocessableEntity},
		{"missing title", "post:drinks", `{"recipe":[{"name":"Milk"}]}`, http.StatusUnprocessableEntity},
		{"unnamed ingredient", "post:drinks", `{"title":"Latte","recipe":[{"color":"white","parts":1}]}`, http.StatusUnprocessableEntity},
		{"title too long", "post:drinks", `{"title":"` + strings.Repeat("x", 81) + `","recipe":[{"name":"Milk"}]}`, http.StatusUnprocessableEntity},
		{"duplicate title", "post:drinks", `{"title":"Flat White","recipe":[{"name":"Milk"}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newDrinkRepo(flatWhite())
			h := newTestServer(t, repo)

			w := do(t, h, http.MethodPost, "/drinks", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode[errorResponse](t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Error)
			assert.Len(t, repo.drinks, 1)
		})
	}
}

func TestUpdateDrink(t *testing.T) {
	repo := newDrinkRepo(flatWhite())
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodPatch, "/drinks/1", "patch:drinks", `{"title":"Oat Flat White"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[drinksResponse](t, w)
	require.Len(t, body.Drinks, 1)
	assert.Equal(t, "Oat Flat White", body.Drinks[0].Title)
	assert.Len(t, body.Drinks[0].Recipe, 2, "recipe unchanged")
	assert.Equal(t, "Oat Flat White", repo.drinks[1].Title)
}

func TestUpdateDrink_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		token  string
		body   string
		status int
	}{
		{"no permission", "/drinks/1", "post:drinks", `{"title":"X"}`, http.StatusMethodNotAllowed},
		{"unknown drink", "/drinks/7", "patch:drinks", `{"title":"X"}`, http.StatusNotFound},
		{"non-numeric id", "/drinks/abc", "patch:drinks", `{"title":"X"}`, http.StatusNotFound},
		{"empty recipe", "/drinks/1", "patch:drinks", `{"recipe":[]}`, http.StatusUnprocessableEntity},
		{"malformed json", "/drinks/1", "patch:drinks", `[`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newDrinkRepo(flatWhite())
			h := newTestServer(t, repo)

			w := do(t, h, http.MethodPatch, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, flatWhite(), repo.drinks[1])
		})
	}
}

func TestDeleteDrink(t *testing.T) {
	repo := newDrinkRepo(flatWhite())
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodDelete, "/drinks/1", "delete:drinks", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool  `json:"success"`
		Delete  int64 `json:"delete"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(1), body.Delete)
	assert.Empty(t, repo.drinks)

	w = do(t, h, http.MethodDelete, "/drinks/1", "delete:drinks", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDrink_RequiresDeletePermission(t *testing.T) {
	repo := newDrinkRepo(flatWhite())
	h := newTestServer(t, repo)

	w := do(t, h, http.MethodDelete, "/drinks/1", "patch:drinks", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Len(t, repo.drinks, 1)
}

func TestRouting_Fallbacks(t *testing.T) {
	h := newTestServer(t, newDrinkRepo(flatWhite()))

	w := do(t, h, http.MethodGet, "/coffee", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, "resource not found", body.Message)

	w = do(t, h, http.MethodPut, "/drinks", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body = decode[errorResponse](t, w)
	assert.Equal(t, "method not allowed", body.Message)
}

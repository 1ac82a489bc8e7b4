package handler

import (
	"net/http"

	"github.com/xenking/coffee-shop/internal/auth"
	"github.com/xenking/coffee-shop/internal/domain/drink"
)

// Permissions required by the protected drink operations.
const (
	PermGetDrinksDetail = "get:drinks-detail"
	PermPostDrinks      = "post:drinks"
	PermPatchDrinks     = "patch:drinks"
	PermDeleteDrinks    = "delete:drinks"
)

// Handler serves the drink menu API, delegating business logic to the drink
// service and authorization to the auth gate.
type Handler struct {
	drinks *drink.Service
	gate   *auth.Gate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(drinks *drink.Service, gate *auth.Gate) *Handler {
	return &Handler{
		drinks: drinks,
		gate:   gate,
	}
}

// Register adds the API routes to mux. Known paths requested with an
// unsupported method get a JSON 405; unknown paths get a JSON 404.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /drinks", h.ListDrinks)
	mux.Handle("GET /drinks-detail", h.gate.Require(PermGetDrinksDetail, h.ListDrinksDetail))
	mux.Handle("POST /drinks", h.gate.Require(PermPostDrinks, h.CreateDrink))
	mux.Handle("PATCH /drinks/{id}", h.gate.Require(PermPatchDrinks, h.UpdateDrink))
	mux.Handle("DELETE /drinks/{id}", h.gate.Require(PermDeleteDrinks, h.DeleteDrink))

	for _, path := range []string{"/drinks", "/drinks-detail", "/drinks/{id}"} {
		mux.HandleFunc(path, methodNotAllowed)
	}
	mux.HandleFunc("/", notFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "resource not found")
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/auth"
	"github.com/xenking/coffee-shop/internal/domain/drink"
)

// ListDrinks returns the public menu with short recipes. An empty menu
// yields 204 No Content.
func (h *Handler) ListDrinks(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.drinks.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if len(drinks) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeDrinks(w, drinks, false)
}

// ListDrinksDetail returns the menu with full recipes. An empty menu yields 404.
func (h *Handler) ListDrinksDetail(_ auth.Claims, w http.ResponseWriter, r *http.Request) {
	drinks, err := h.drinks.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if len(drinks) == 0 {
		notFound(w, r)
		return
	}
	writeDrinks(w, drinks, true)
}

// CreateDrink adds a drink to the menu.
func (h *Handler) CreateDrink(claims auth.Claims, w http.ResponseWriter, r *http.Request) {
	in, err := readDrinkInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	req := drink.CreateRequest{Recipe: in.Recipe}
	if in.Title != nil {
		req.Title = *in.Title
	}
	d, err := h.drinks.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Drink created",
		zap.Int64("drink_id", d.ID),
		zap.String("title", d.Title),
		zap.String("sub", claims.Subject()),
	)
	writeDrinks(w, []drink.Drink{*d}, true)
}

// UpdateDrink applies a partial update to a drink.
func (h *Handler) UpdateDrink(claims auth.Claims, w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		notFound(w, r)
		return
	}
	in, err := readDrinkInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	d, err := h.drinks.Update(r.Context(), id, drink.UpdateRequest{
		Title:  in.Title,
		Recipe: in.Recipe,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Drink updated",
		zap.Int64("drink_id", d.ID),
		zap.String("sub", claims.Subject()),
	)
	writeDrinks(w, []drink.Drink{*d}, true)
}

// DeleteDrink removes a drink and responds with its id.
func (h *Handler) DeleteDrink(claims auth.Claims, w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		notFound(w, r)
		return
	}
	if err := h.drinks.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	zctx.From(r.Context()).Info("Drink deleted",
		zap.Int64("drink_id", id),
		zap.String("sub", claims.Subject()),
	)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("delete")
	e.Int64(id)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func drinkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeDrinks(w http.ResponseWriter, drinks []drink.Drink, long bool) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("drinks")
	encodeDrinks(&e, drinks, long)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// handleError maps domain errors to API error responses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *drink.ValidationError
	switch {
	case errors.Is(err, drink.ErrNotFound):
		notFound(w, r)
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable: "+vErr.Error())
	case errors.Is(err, drink.ErrTitleTaken):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable: "+drink.ErrTitleTaken.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

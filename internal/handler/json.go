package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coffee-shop/internal/domain/drink"
)

// maxBodySize limits request bodies of write operations.
const maxBodySize = 1 << 20

// drinkInput is a decoded create/update request body. A nil recipe means the
// field was absent or null.
type drinkInput struct {
	Title  *string
	Recipe []drink.Ingredient
}

// readDrinkInput decodes {"title": ..., "recipe": [...]} from the request
// body. The recipe may also be a single ingredient object.
func readDrinkInput(w http.ResponseWriter, r *http.Request) (drinkInput, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return drinkInput{}, errors.Wrap(err, "read body")
	}
	return decodeDrinkInput(data)
}

func decodeDrinkInput(data []byte) (drinkInput, error) {
	var in drinkInput
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "title":
			title, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "title")
			}
			in.Title = &title
		case "recipe":
			recipe, err := decodeRecipe(d)
			if err != nil {
				return errors.Wrap(err, "recipe")
			}
			in.Recipe = recipe
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return drinkInput{}, errors.Wrap(err, "decode drink")
	}
	return in, nil
}

func decodeRecipe(d *jx.Decoder) ([]drink.Ingredient, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		in, err := decodeIngredient(d)
		if err != nil {
			return nil, err
		}
		return []drink.Ingredient{in}, nil
	case jx.Array:
		recipe := []drink.Ingredient{}
		err := d.Arr(func(d *jx.Decoder) error {
			in, err := decodeIngredient(d)
			if err != nil {
				return err
			}
			recipe = append(recipe, in)
			return nil
		})
		return recipe, err
	default:
		return nil, errors.New("must be an object or an array")
	}
}

func decodeIngredient(d *jx.Decoder) (drink.Ingredient, error) {
	var in drink.Ingredient
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = d.Str()
		case "color":
			in.Color, err = d.Str()
		case "parts":
			in.Parts, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func encodeDrinks(e *jx.Encoder, drinks []drink.Drink, long bool) {
	e.ArrStart()
	for _, d := range drinks {
		encodeDrink(e, d, long)
	}
	e.ArrEnd()
}

// encodeDrink writes d in its long form (full recipe) or short form (recipe
// without ingredient names).
func encodeDrink(e *jx.Encoder, d drink.Drink, long bool) {
	recipe := d.Recipe
	if !long {
		recipe = d.Short()
	}

	e.ObjStart()
	e.FieldStart("id")
	e.Int64(d.ID)
	e.FieldStart("title")
	e.Str(d.Title)
	e.FieldStart("recipe")
	e.ArrStart()
	for _, in := range recipe {
		e.ObjStart()
		if long {
			e.FieldStart("name")
			e.Str(in.Name)
		}
		e.FieldStart("color")
		e.Str(in.Color)
		e.FieldStart("parts")
		e.Int(in.Parts)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"success": false, "error": status, "message": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

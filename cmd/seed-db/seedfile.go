package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/coffee-shop/internal/domain/drink"
)

type ingredientJSON struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

type drinkJSON struct {
	Title  string           `json:"title"`
	Recipe []ingredientJSON `json:"recipe"`
}

// readSeedFile reads a JSON array of drinks. Files ending in .gz are
// gunzipped first.
func readSeedFile(path string) ([]drink.CreateRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return decodeSeed(r)
}

func decodeSeed(r io.Reader) ([]drink.CreateRequest, error) {
	var raw []drinkJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	out := make([]drink.CreateRequest, 0, len(raw))
	for _, d := range raw {
		recipe := make([]drink.Ingredient, 0, len(d.Recipe))
		for _, in := range d.Recipe {
			recipe = append(recipe, drink.Ingredient{Name: in.Name, Color: in.Color, Parts: in.Parts})
		}
		out = append(out, drink.CreateRequest{Title: d.Title, Recipe: recipe})
	}
	return out, nil
}

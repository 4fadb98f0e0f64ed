package recipe

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// MalformedRecipeError reports a recipe record that is missing a required
// field or carries an unusable value.
type MalformedRecipeError struct {
	Index  int    // Position of the record in the source list.
	Name   string // Beverage name, empty when the name itself is missing.
	Field  string // "name" or "ingredients".
	Reason string
}

func (e *MalformedRecipeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("beverages[%d]: %s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("beverages[%d] %q: %s: %s", e.Index, e.Name, e.Field, e.Reason)
}

// ErrNoRecipes indicates a recipe document without any beverages.
var ErrNoRecipes = errors.New("no beverages defined")

// recipeYAML is the YAML representation of a Recipe. Ingredients stay a raw
// node so their key order survives decoding.
type recipeYAML struct {
	Name        string    `yaml:"name"`
	Ingredients yaml.Node `yaml:"ingredients"`
}

// recipesFile is the top-level YAML structure for a recipes document.
type recipesFile struct {
	Beverages []recipeYAML `yaml:"beverages"`
}

// Parse decodes a recipes document. Every malformed record is reported; use
// errors.As with *MalformedRecipeError to inspect them.
func Parse(data []byte) ([]Recipe, error) {
	var file recipesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if len(file.Beverages) == 0 {
		return nil, ErrNoRecipes
	}

	var errs error
	recipes := make([]Recipe, 0, len(file.Beverages))
	for i, ry := range file.Beverages {
		r, err := convertRecipeYAML(i, ry)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		recipes = append(recipes, r)
	}
	if errs != nil {
		return nil, errs
	}
	return recipes, nil
}

func convertRecipeYAML(i int, ry recipeYAML) (Recipe, error) {
	if ry.Name == "" {
		return Recipe{}, &MalformedRecipeError{Index: i, Field: "name", Reason: "is required"}
	}
	reqs, reason := parseRequirements(&ry.Ingredients)
	if reason != "" {
		return Recipe{}, &MalformedRecipeError{Index: i, Name: ry.Name, Field: "ingredients", Reason: reason}
	}
	return Recipe{Name: ry.Name, Ingredients: reqs}, nil
}

// parseRequirements walks an ingredient mapping in document order.
// It returns a non-empty reason when the mapping is unusable.
func parseRequirements(node *yaml.Node) (Requirements, string) {
	if node.Kind == 0 {
		return nil, "is required"
	}
	if node.Kind != yaml.MappingNode {
		return nil, "must be a mapping of ingredient to quantity"
	}
	if len(node.Content) == 0 {
		return nil, "must list at least one ingredient"
	}

	seen := make(map[string]bool, len(node.Content)/2)
	reqs := make(Requirements, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		name := key.Value
		if name == "" {
			return nil, "ingredient name cannot be empty"
		}
		if seen[name] {
			return nil, fmt.Sprintf("duplicate ingredient %q", name)
		}
		seen[name] = true

		if val.Kind != yaml.ScalarNode || val.ShortTag() != "!!int" {
			return nil, fmt.Sprintf("%s: quantity must be an integer, got %q", name, val.Value)
		}
		var qty int
		if err := val.Decode(&qty); err != nil {
			return nil, fmt.Sprintf("%s: %v", name, err)
		}
		if qty <= 0 {
			return nil, fmt.Sprintf("%s: quantity must be positive, got %d", name, qty)
		}
		reqs = append(reqs, Requirement{Ingredient: name, Quantity: qty})
	}
	return reqs, ""
}

package inventory

import (
	"bytes"
	"fmt"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/smileynet/barista/internal/source"
)

// Stock is an initial ingredient quantity read from an ingredient source.
type Stock struct {
	Name     string
	Quantity int
}

// MalformedStockError reports an unusable entry in an ingredient source.
type MalformedStockError struct {
	Ingredient string
	Reason     string
}

func (e *MalformedStockError) Error() string {
	return fmt.Sprintf("ingredients %q: %s", e.Ingredient, e.Reason)
}

// stockFile is the top-level YAML structure for an ingredients document.
type stockFile struct {
	Ingredients yaml.Node `yaml:"ingredients"`
}

// ParseStock decodes an ingredients document into entries in document order.
// Repeated names are kept so Seed can report them.
func ParseStock(data []byte) ([]Stock, error) {
	var file stockFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	node := &file.Ingredients
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ingredients must be a mapping of name to quantity")
	}

	var errs error
	stock := make([]Stock, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "" {
			errs = multierr.Append(errs, &MalformedStockError{Reason: "name cannot be empty"})
			continue
		}
		if val.Kind != yaml.ScalarNode || val.ShortTag() != "!!int" {
			errs = multierr.Append(errs, &MalformedStockError{Ingredient: key.Value, Reason: fmt.Sprintf("quantity must be an integer, got %q", val.Value)})
			continue
		}
		var qty int
		if err := val.Decode(&qty); err != nil {
			errs = multierr.Append(errs, &MalformedStockError{Ingredient: key.Value, Reason: err.Error()})
			continue
		}
		if qty < 0 {
			errs = multierr.Append(errs, &MalformedStockError{Ingredient: key.Value, Reason: fmt.Sprintf("quantity cannot be negative, got %d", qty)})
			continue
		}
		stock = append(stock, Stock{Name: key.Value, Quantity: qty})
	}
	if errs != nil {
		return nil, errs
	}
	return stock, nil
}

// LoadStock reads and parses an ingredient source.
func LoadStock(src source.Source) ([]Stock, error) {
	data, err := src.Read()
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	stock, err := ParseStock(data)
	if err != nil {
		return nil, fmt.Errorf("inventory: %s: %w", src, err)
	}
	return stock, nil
}

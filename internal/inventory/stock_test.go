package inventory

import (
	"errors"
	"testing"

	"github.com/smileynet/barista/internal/source"
)

func TestParseStock_KeepsDocumentOrder(t *testing.T) {
	doc := `
ingredients:
  hot_water: 500
  hot_milk: 500
  ginger_syrup: 100
  hot_water: 50
`
	stock, err := ParseStock([]byte(doc))
	if err != nil {
		t.Fatalf("ParseStock() error = %v", err)
	}
	want := []Stock{
		{Name: "hot_water", Quantity: 500},
		{Name: "hot_milk", Quantity: 500},
		{Name: "ginger_syrup", Quantity: 100},
		{Name: "hot_water", Quantity: 50},
	}
	if len(stock) != len(want) {
		t.Fatalf("got %d entries, want %d", len(stock), len(want))
	}
	for i := range want {
		if stock[i] != want[i] {
			t.Errorf("stock[%d] = %+v, want %+v", i, stock[i], want[i])
		}
	}
}

func TestParseStock_EmptyMapping(t *testing.T) {
	for _, doc := range []string{"ingredients:\n", "ingredients: {}\n"} {
		stock, err := ParseStock([]byte(doc))
		if err != nil {
			t.Errorf("ParseStock(%q) error = %v", doc, err)
		}
		if len(stock) != 0 {
			t.Errorf("ParseStock(%q) = %v, want empty", doc, stock)
		}
	}
}

func TestParseStock_Errors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		malformed bool
	}{
		{name: "negative quantity", doc: "ingredients: {hot_water: -1}\n", malformed: true},
		{name: "non-integer quantity", doc: "ingredients: {hot_water: lots}\n", malformed: true},
		{name: "not a mapping", doc: "ingredients: [hot_water]\n"},
		{name: "unknown field", doc: "ingredients: {}\nrecipes: {}\n"},
		{name: "invalid YAML", doc: "{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStock([]byte(tt.doc))
			if err == nil {
				t.Fatal("ParseStock() should fail")
			}
			var mse *MalformedStockError
			if got := errors.As(err, &mse); got != tt.malformed {
				t.Errorf("errors.As(*MalformedStockError) = %v, want %v (err: %v)", got, tt.malformed, err)
			}
		})
	}
}

func TestLoadStock(t *testing.T) {
	stock, err := LoadStock(source.Bytes{Name: "inline", Data: []byte("ingredients: {hot_water: 0}\n")})
	if err != nil {
		t.Fatalf("LoadStock() error = %v", err)
	}
	if len(stock) != 1 || stock[0].Name != "hot_water" {
		t.Errorf("LoadStock() = %v", stock)
	}

	if _, err := LoadStock(source.Bytes{Name: "empty"}); !errors.Is(err, source.ErrEmpty) {
		t.Errorf("LoadStock(empty) error = %v, want source.ErrEmpty", err)
	}
}

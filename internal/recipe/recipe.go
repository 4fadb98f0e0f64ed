// Package recipe loads beverage recipes and serves them from an atomically
// swappable catalog.
package recipe

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/source"
)

// Requirement is the quantity of one ingredient a beverage consumes.
type Requirement struct {
	Ingredient string
	Quantity   int
}

// Requirements lists a recipe's ingredients in source order.
// The inventory evaluates them in this order, so failures name the first
// offending ingredient deterministically.
type Requirements []Requirement

// Recipe is an immutable beverage definition. Its Requirements slice is shared
// with the catalog snapshot and must be treated as read-only.
type Recipe struct {
	Name        string
	Ingredients Requirements
}

// Load reads src and builds the beverage mapping. Duplicate names keep the
// later definition and emit a DuplicateRecipe notice through notify.
func Load(src source.Source, notify notice.Func) (map[string]Recipe, error) {
	data, err := src.Read()
	if err != nil {
		return nil, fmt.Errorf("recipe: %w", err)
	}
	recipes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("recipe: %s: %w", src, err)
	}
	if notify == nil {
		notify = notice.Discard
	}

	mapping := make(map[string]Recipe, len(recipes))
	for _, r := range recipes {
		if _, exists := mapping[r.Name]; exists {
			notify(notice.Notice{Kind: notice.DuplicateRecipe, Beverage: r.Name})
		}
		mapping[r.Name] = r
	}
	return mapping, nil
}

// Catalog maps beverage names to recipes. Lookups are lock-free; Reload
// replaces the whole mapping at once so readers see either the old or the new
// catalog in full.
type Catalog struct {
	current atomic.Pointer[map[string]Recipe]
	notify  notice.Func
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithNotifier sets the callback for duplicate and recalibration notices.
func WithNotifier(fn notice.Func) Option {
	return func(c *Catalog) { c.notify = fn }
}

// NewCatalog creates a Catalog serving recipes. The map is owned by the
// catalog afterwards and must not be modified by the caller.
func NewCatalog(recipes map[string]Recipe, opts ...Option) *Catalog {
	c := &Catalog{notify: notice.Discard}
	for _, opt := range opts {
		opt(c)
	}
	if recipes == nil {
		recipes = map[string]Recipe{}
	}
	c.current.Store(&recipes)
	return c
}

// Lookup returns the recipe for name. A miss is a normal outcome.
func (c *Catalog) Lookup(name string) (Recipe, bool) {
	r, ok := (*c.current.Load())[name]
	return r, ok
}

// Names returns the beverage names in sorted order.
func (c *Catalog) Names() []string {
	m := *c.current.Load()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload re-reads src and swaps in the new mapping. On error the current
// catalog stays in place.
func (c *Catalog) Reload(src source.Source) error {
	recipes, err := Load(src, c.notify)
	if err != nil {
		return err
	}
	c.current.Store(&recipes)
	c.notify(notice.Notice{Kind: notice.Recalibrated, Quantity: len(recipes)})
	return nil
}

// Package dispense prepares single beverages: one recipe lookup followed by
// one inventory transaction.
package dispense

import (
	"errors"
	"fmt"

	"github.com/smileynet/barista/internal/inventory"
	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/recipe"
)

// Catalog resolves beverage names to recipes.
// Defined here (the consumer) per Go convention: accept interfaces, return structs.
type Catalog interface {
	Lookup(name string) (recipe.Recipe, bool)
}

// Consumer performs the atomic check-and-consume transaction.
type Consumer interface {
	Consume(reqs recipe.Requirements) (inventory.Receipt, error)
}

// Status is the terminal outcome of a prepare call.
type Status string

const (
	StatusPrepared        Status = "prepared"
	StatusUnknownBeverage Status = "unknown_beverage"
	StatusUnavailable     Status = "unavailable"
	StatusInsufficient    Status = "insufficient"
	StatusCancelled       Status = "cancelled"
)

// Result records one prepare call.
type Result struct {
	Outlet     int    `json:"outlet"`
	Beverage   string `json:"beverage"`
	Status     Status `json:"status"`
	Ingredient string `json:"ingredient,omitempty"` // Failing ingredient for unavailable/insufficient.
}

// OK reports whether the beverage was prepared.
func (r Result) OK() bool { return r.Status == StatusPrepared }

// UnknownBeverageError indicates the catalog has no recipe for a beverage.
type UnknownBeverageError struct {
	Beverage string
}

func (e *UnknownBeverageError) Error() string {
	return fmt.Sprintf("dispense: %s doesn't exist in the system", e.Beverage)
}

// Coordinator prepares beverages against a catalog and an inventory.
type Coordinator struct {
	catalog Catalog
	stock   Consumer
	notify  notice.Func
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the callback for dispense outcome notices.
func WithNotifier(fn notice.Func) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// New creates a Coordinator.
func New(catalog Catalog, stock Consumer, opts ...Option) *Coordinator {
	c := &Coordinator{
		catalog: catalog,
		stock:   stock,
		notify:  notice.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prepare dispenses beverage at outlet. An unknown beverage returns
// *UnknownBeverageError without touching the inventory; inventory failures
// are returned unchanged (*inventory.UnavailableError,
// *inventory.InsufficientError). The Result is populated in every case.
func (c *Coordinator) Prepare(outlet int, beverage string) (Result, error) {
	res := Result{Outlet: outlet, Beverage: beverage}

	r, ok := c.catalog.Lookup(beverage)
	if !ok {
		res.Status = StatusUnknownBeverage
		c.notify(notice.Notice{Kind: notice.UnknownBeverage, Outlet: outlet, Beverage: beverage})
		return res, &UnknownBeverageError{Beverage: beverage}
	}

	_, err := c.stock.Consume(r.Ingredients)

	var (
		unavailable  *inventory.UnavailableError
		insufficient *inventory.InsufficientError
	)
	switch {
	case err == nil:
		res.Status = StatusPrepared
		c.notify(notice.Notice{Kind: notice.Prepared, Outlet: outlet, Beverage: beverage})
	case errors.As(err, &unavailable):
		res.Status = StatusUnavailable
		res.Ingredient = unavailable.Ingredient
		c.notify(notice.Notice{Kind: notice.Unavailable, Outlet: outlet, Beverage: beverage, Ingredient: res.Ingredient})
	case errors.As(err, &insufficient):
		res.Status = StatusInsufficient
		res.Ingredient = insufficient.Ingredient
		c.notify(notice.Notice{Kind: notice.Insufficient, Outlet: outlet, Beverage: beverage, Ingredient: res.Ingredient})
	default:
		return res, fmt.Errorf("dispense: %s: %w", beverage, err)
	}
	return res, err
}

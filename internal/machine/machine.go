// Package machine assembles a beverage machine: a recipe catalog, a shared
// ingredient inventory, and a fixed number of dispensing outlets.
package machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/smileynet/barista/internal/dispense"
	"github.com/smileynet/barista/internal/inventory"
	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/outlet"
	"github.com/smileynet/barista/internal/recipe"
	"github.com/smileynet/barista/internal/refill"
	"github.com/smileynet/barista/internal/source"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrNoOutlets      = errors.New("machine: outlet count must be positive")
	ErrNoRecipeSource = errors.New("machine: recipe source is required")
)

// Options configures a Machine.
type Options struct {
	Outlets       int           // Concurrent dispenses; must be positive.
	Capacity      int           // Per-ingredient maximum; zero means inventory.Unbounded.
	Recipes       source.Source // Required. Re-read on Recalibrate.
	Ingredients   source.Source // Initial stock. Nil starts with an empty inventory.
	Notify        notice.Func   // Receives every notice. Nil discards.
	RefillLimiter *rate.Limiter // Throttles refills. Nil disables throttling.
}

// Batch records one PrepareBatch call.
type Batch struct {
	ID       uuid.UUID         `json:"id"`
	Outlets  int               `json:"outlets"`
	Results  []dispense.Result `json:"results"` // Submission order.
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

// Prepared returns how many beverages in the batch were dispensed.
func (b Batch) Prepared() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Machine is a beverage machine. All methods are safe for concurrent use.
type Machine struct {
	recipes   source.Source
	catalog   *recipe.Catalog
	inv       *inventory.Inventory
	outlets   *outlet.Scheduler
	dispenser *dispense.Coordinator
	refills   *refill.Manager
}

// New loads recipes and initial stock and builds a Machine. Any load failure
// is returned and no Machine is created.
func New(opts Options) (*Machine, error) {
	if opts.Outlets <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoOutlets, opts.Outlets)
	}
	if opts.Recipes == nil {
		return nil, ErrNoRecipeSource
	}
	notify := opts.Notify
	if notify == nil {
		notify = notice.Discard
	}

	recipes, err := recipe.Load(opts.Recipes, notify)
	if err != nil {
		return nil, fmt.Errorf("machine: loading recipes: %w", err)
	}

	var stock []inventory.Stock
	if opts.Ingredients != nil {
		stock, err = inventory.LoadStock(opts.Ingredients)
		if err != nil {
			return nil, fmt.Errorf("machine: loading ingredients: %w", err)
		}
	}

	catalog := recipe.NewCatalog(recipes, recipe.WithNotifier(notify))
	inv := inventory.New(opts.Capacity, inventory.WithNotifier(notify))
	inv.Seed(stock)

	return &Machine{
		recipes:   opts.Recipes,
		catalog:   catalog,
		inv:       inv,
		outlets:   outlet.New(opts.Outlets),
		dispenser: dispense.New(catalog, inv, dispense.WithNotifier(notify)),
		refills:   refill.New(inv, refill.WithLimiter(opts.RefillLimiter)),
	}, nil
}

// PrepareBeverage waits for a free outlet and dispenses one beverage on it.
// If ctx is done before an outlet frees up, the result is StatusCancelled and
// ctx's error is returned. Otherwise errors are those of dispense.Prepare.
func (m *Machine) PrepareBeverage(ctx context.Context, name string) (dispense.Result, error) {
	id, release, err := m.outlets.Acquire(ctx)
	if err != nil {
		return dispense.Result{Beverage: name, Status: dispense.StatusCancelled}, err
	}
	defer release()
	return m.dispenser.Prepare(id, name)
}

// Progress reports one beverage moving through a batch. It is sent once when
// the beverage reaches an outlet and once when it finishes.
type Progress struct {
	Index    int // Position in the submitted names.
	Outlet   int // Zero if the beverage never reached an outlet.
	Beverage string
	Done     bool
	Result   dispense.Result // Set when Done.
}

// PrepareBatch dispenses every named beverage, at most Outlets() at a time,
// and returns once all have finished. Individual failures are reported in
// the results, never as an error. Requests still waiting for an outlet when
// ctx is done are marked StatusCancelled.
func (m *Machine) PrepareBatch(ctx context.Context, names []string) Batch {
	return m.PrepareBatchFunc(ctx, names, nil)
}

// PrepareBatchFunc is PrepareBatch with a progress callback. progress is
// called from the dispensing goroutines and must be safe for concurrent use.
// Cancelled requests are reported after the batch drains. A nil progress is
// allowed.
func (m *Machine) PrepareBatchFunc(ctx context.Context, names []string, progress func(Progress)) Batch {
	if progress == nil {
		progress = func(Progress) {}
	}
	batch := Batch{
		ID:      uuid.New(),
		Outlets: m.outlets.Outlets(),
		Results: make([]dispense.Result, len(names)),
		Started: time.Now(),
	}

	errs := m.outlets.Run(ctx, len(names), func(id, i int) {
		progress(Progress{Index: i, Outlet: id, Beverage: names[i]})
		// Recoverable outcomes are already encoded in the result.
		batch.Results[i], _ = m.dispenser.Prepare(id, names[i])
		progress(Progress{Index: i, Outlet: id, Beverage: names[i], Done: true, Result: batch.Results[i]})
	})
	for i, err := range errs {
		if err != nil {
			batch.Results[i] = dispense.Result{Beverage: names[i], Status: dispense.StatusCancelled}
			progress(Progress{Index: i, Beverage: names[i], Done: true, Result: batch.Results[i]})
		}
	}

	batch.Finished = time.Now()
	return batch
}

// RefillIngredient adds amount to one ingredient, creating it if absent.
func (m *Machine) RefillIngredient(ctx context.Context, name string, amount int) (inventory.RefillResult, error) {
	return m.refills.Refill(ctx, name, amount)
}

// RefillAllIngredients adds amount to every ingredient in stock.
func (m *Machine) RefillAllIngredients(ctx context.Context, amount int) ([]inventory.RefillResult, error) {
	return m.refills.RefillAll(ctx, amount)
}

// Recalibrate re-reads the recipe source and replaces the catalog. On error
// the current catalog stays in place.
func (m *Machine) Recalibrate() error {
	if err := m.catalog.Reload(m.recipes); err != nil {
		return fmt.Errorf("machine: recalibrating: %w", err)
	}
	return nil
}

// Stock returns current ingredient levels sorted by name.
func (m *Machine) Stock() []inventory.Level { return m.inv.Snapshot() }

// Quantity returns the current quantity of one ingredient.
func (m *Machine) Quantity(name string) (int, bool) { return m.inv.Get(name) }

// Recipes returns the known beverages sorted by name.
func (m *Machine) Recipes() []recipe.Recipe {
	names := m.catalog.Names()
	out := make([]recipe.Recipe, 0, len(names))
	for _, n := range names {
		if r, ok := m.catalog.Lookup(n); ok {
			out = append(out, r)
		}
	}
	return out
}

// Outlets returns the number of outlets.
func (m *Machine) Outlets() int { return m.outlets.Outlets() }

// Capacity returns the per-ingredient maximum.
func (m *Machine) Capacity() int { return m.inv.Capacity() }

// Package inventory tracks ingredient quantities shared by every outlet.
//
// All read-decide-write operations (Consume, Refill, RefillAll) hold the same
// exclusive lock for their whole duration, so a beverage's check and its
// deduction form one indivisible step and no quantity ever leaves
// [0, capacity].
package inventory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/recipe"
)

// Unbounded is the capacity used when none is configured.
const Unbounded = math.MaxInt32

// lowStockPercent is the share of capacity at or below which an ingredient
// is reported as running low after a deduction.
const lowStockPercent = 10

// ErrNegativeAmount is returned by refills with an amount below zero.
var ErrNegativeAmount = errors.New("inventory: refill amount cannot be negative")

// UnavailableError reports a required ingredient that is absent or empty.
type UnavailableError struct {
	Ingredient string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inventory: %s is not available", e.Ingredient)
}

// InsufficientError reports a required ingredient whose stock is below the
// required quantity.
type InsufficientError struct {
	Ingredient string
	Available  int
	Required   int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("inventory: %s is not sufficient (have %d, need %d)", e.Ingredient, e.Available, e.Required)
}

// InvalidRequirementError reports a requirement list that cannot be
// consumed: a quantity at or below zero, or an ingredient listed twice.
type InvalidRequirementError struct {
	Ingredient string
	Reason     string
}

func (e *InvalidRequirementError) Error() string {
	return fmt.Sprintf("inventory: invalid requirement for %s: %s", e.Ingredient, e.Reason)
}

// Receipt describes a successful consumption.
type Receipt struct {
	Remaining map[string]int // Post-deduction quantity per consumed ingredient.
	LowStock  []string       // Ingredients at or below the low-stock threshold, in requirement order.
}

// RefillResult describes the effect of a single refill.
type RefillResult struct {
	Ingredient string
	Before     int
	After      int
	Added      bool // The ingredient did not exist before this refill.
	Spilled    int  // Requested amount discarded because the container was full.
}

// Level is a point-in-time view of one ingredient.
type Level struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Capacity int    `json:"capacity"`
	Low      bool   `json:"low"`
}

// Inventory holds ingredient quantities under a single capacity bound.
// An Inventory must not be copied after first use.
type Inventory struct {
	mu       sync.RWMutex
	stock    map[string]int
	capacity int
	lowAt    int // Quantity at or below which an ingredient is low.
	notify   notice.Func
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithNotifier sets the callback for refill, spillage, and low-stock notices.
// It is invoked after the lock is released.
func WithNotifier(fn notice.Func) Option {
	return func(inv *Inventory) { inv.notify = fn }
}

// New creates an empty Inventory. A capacity of zero or less means Unbounded.
func New(capacity int, opts ...Option) *Inventory {
	if capacity <= 0 {
		capacity = Unbounded
	}
	inv := &Inventory{
		stock:    make(map[string]int),
		capacity: capacity,
		lowAt:    capacity/100*lowStockPercent + capacity%100*lowStockPercent/100,
		notify:   notice.Discard,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Capacity returns the per-ingredient maximum.
func (inv *Inventory) Capacity() int {
	return inv.capacity
}

// Seed loads initial stock, clamping each quantity to capacity. A repeated
// ingredient keeps the later quantity and emits a DuplicateIngredient notice.
func (inv *Inventory) Seed(stock []Stock) {
	var notices []notice.Notice

	inv.mu.Lock()
	for _, s := range stock {
		if _, exists := inv.stock[s.Name]; exists {
			notices = append(notices, notice.Notice{Kind: notice.DuplicateIngredient, Ingredient: s.Name, Quantity: s.Quantity})
		}
		inv.stock[s.Name] = min(max(s.Quantity, 0), inv.capacity)
	}
	inv.mu.Unlock()

	inv.emit(notices)
}

// Get returns the current quantity of name.
func (inv *Inventory) Get(name string) (int, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	q, ok := inv.stock[name]
	return q, ok
}

// Snapshot returns every ingredient level sorted by name.
func (inv *Inventory) Snapshot() []Level {
	inv.mu.RLock()
	levels := make([]Level, 0, len(inv.stock))
	for name, q := range inv.stock {
		levels = append(levels, Level{Name: name, Quantity: q, Capacity: inv.capacity, Low: inv.isLow(q)})
	}
	inv.mu.RUnlock()

	sort.Slice(levels, func(i, j int) bool { return levels[i].Name < levels[j].Name })
	return levels
}

// Consume atomically checks every requirement and, only if all are
// satisfied, deducts them. Requirements are evaluated in order and the first
// failing ingredient is reported as *UnavailableError (absent or zero stock)
// or *InsufficientError. Malformed requirements are rejected with
// *InvalidRequirementError before stock is read. A failed call leaves every
// quantity unchanged.
func (inv *Inventory) Consume(reqs recipe.Requirements) (Receipt, error) {
	if err := validateRequirements(reqs); err != nil {
		return Receipt{}, err
	}

	var notices []notice.Notice

	inv.mu.Lock()
	for _, req := range reqs {
		available, ok := inv.stock[req.Ingredient]
		if !ok || available == 0 {
			inv.mu.Unlock()
			return Receipt{}, &UnavailableError{Ingredient: req.Ingredient}
		}
		if available < req.Quantity {
			inv.mu.Unlock()
			return Receipt{}, &InsufficientError{Ingredient: req.Ingredient, Available: available, Required: req.Quantity}
		}
	}

	receipt := Receipt{Remaining: make(map[string]int, len(reqs))}
	for _, req := range reqs {
		left := inv.stock[req.Ingredient] - req.Quantity
		inv.stock[req.Ingredient] = left
		receipt.Remaining[req.Ingredient] = left
		if inv.isLow(left) {
			receipt.LowStock = append(receipt.LowStock, req.Ingredient)
			notices = append(notices, notice.Notice{Kind: notice.LowStock, Ingredient: req.Ingredient, Quantity: left})
		}
	}
	inv.mu.Unlock()

	inv.emit(notices)
	return receipt, nil
}

func validateRequirements(reqs recipe.Requirements) error {
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return &InvalidRequirementError{Ingredient: req.Ingredient, Reason: fmt.Sprintf("quantity must be positive, got %d", req.Quantity)}
		}
		if _, dup := seen[req.Ingredient]; dup {
			return &InvalidRequirementError{Ingredient: req.Ingredient, Reason: "listed more than once"}
		}
		seen[req.Ingredient] = struct{}{}
	}
	return nil
}

// Refill adds amount to name. An unknown ingredient is created; an amount
// that would overflow the container fills it to capacity and reports the
// excess as spillage.
func (inv *Inventory) Refill(name string, amount int) (RefillResult, error) {
	if amount < 0 {
		return RefillResult{}, ErrNegativeAmount
	}

	inv.mu.Lock()
	res, notices := inv.refillLocked(name, amount)
	inv.mu.Unlock()

	inv.emit(notices)
	return res, nil
}

// RefillAll refills every currently known ingredient by amount in one
// critical section, in name order. No dispense observes a partial sweep.
func (inv *Inventory) RefillAll(amount int) ([]RefillResult, error) {
	if amount < 0 {
		return nil, ErrNegativeAmount
	}

	var notices []notice.Notice

	inv.mu.Lock()
	names := make([]string, 0, len(inv.stock))
	for name := range inv.stock {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]RefillResult, 0, len(names))
	for _, name := range names {
		res, ns := inv.refillLocked(name, amount)
		results = append(results, res)
		notices = append(notices, ns...)
	}
	inv.mu.Unlock()

	inv.emit(notices)
	return results, nil
}

// refillLocked applies one refill. The caller holds inv.mu.
func (inv *Inventory) refillLocked(name string, amount int) (RefillResult, []notice.Notice) {
	current, ok := inv.stock[name]
	res := RefillResult{Ingredient: name, Before: current, Added: !ok}

	if inv.capacity-current >= amount {
		res.After = current + amount
	} else {
		res.After = inv.capacity
		res.Spilled = amount - (inv.capacity - current)
	}
	inv.stock[name] = res.After

	var notices []notice.Notice
	switch {
	case res.Added:
		notices = append(notices, notice.Notice{Kind: notice.IngredientAdded, Ingredient: name, Quantity: res.After, Amount: amount})
	case res.Spilled == 0:
		notices = append(notices, notice.Notice{Kind: notice.Refilled, Ingredient: name, Quantity: res.After, Amount: amount})
	}
	if res.Spilled > 0 {
		notices = append(notices, notice.Notice{Kind: notice.Spillage, Ingredient: name, Quantity: res.After, Amount: amount})
	}
	return res, notices
}

func (inv *Inventory) isLow(q int) bool {
	return q <= inv.lowAt
}

func (inv *Inventory) emit(notices []notice.Notice) {
	for _, n := range notices {
		inv.notify(n)
	}
}

// Package notice defines the human-readable side effects of machine operations.
//
// Notices are diagnostic output: they never change control flow. Producers call a
// Func; consumers decide whether to print, log, or record them.
package notice

import (
	"fmt"
	"sync"
)

// Kind identifies the outcome a notice reports.
type Kind string

const (
	Prepared            Kind = "prepared"
	UnknownBeverage     Kind = "unknown_beverage"
	Unavailable         Kind = "unavailable"
	Insufficient        Kind = "insufficient"
	Refilled            Kind = "refilled"
	Spillage            Kind = "spillage"
	LowStock            Kind = "low_stock"
	IngredientAdded     Kind = "ingredient_added"
	DuplicateRecipe     Kind = "duplicate_recipe"
	DuplicateIngredient Kind = "duplicate_ingredient"
	Recalibrated        Kind = "recalibrated"
)

// Warning reports whether the kind signals a condition an operator should act on.
func (k Kind) Warning() bool {
	switch k {
	case Spillage, LowStock, DuplicateRecipe, DuplicateIngredient:
		return true
	default:
		return false
	}
}

// Failure reports whether the kind is a failed dispense.
func (k Kind) Failure() bool {
	switch k {
	case UnknownBeverage, Unavailable, Insufficient:
		return true
	default:
		return false
	}
}

// Notice is a single observable event.
type Notice struct {
	Kind       Kind
	Outlet     int    // Outlet number, 0 when the event is not tied to an outlet.
	Beverage   string // Set for dispense and recipe notices.
	Ingredient string // Set for inventory notices and dispense failures.
	Quantity   int    // Resulting quantity (inventory notices) or beverage count (recalibration).
	Amount     int    // Requested refill amount.
}

// String renders the notice as an operator-facing sentence.
func (n Notice) String() string {
	msg := n.message()
	if n.Outlet > 0 {
		return fmt.Sprintf("[outlet %d] %s", n.Outlet, msg)
	}
	return msg
}

func (n Notice) message() string {
	switch n.Kind {
	case Prepared:
		return fmt.Sprintf("%s is prepared", n.Beverage)
	case UnknownBeverage:
		return fmt.Sprintf("%s doesn't exist in the system", n.Beverage)
	case Unavailable:
		return fmt.Sprintf("%s cannot be prepared because %s is not available", n.Beverage, n.Ingredient)
	case Insufficient:
		return fmt.Sprintf("%s cannot be prepared because %s is not sufficient", n.Beverage, n.Ingredient)
	case Refilled:
		return fmt.Sprintf("%s refilled (now %d)", n.Ingredient, n.Quantity)
	case Spillage:
		return fmt.Sprintf("refilling %s with %d caused spillage, container is full (%d)", n.Ingredient, n.Amount, n.Quantity)
	case LowStock:
		return fmt.Sprintf("%s is running low (%d left), please refill", n.Ingredient, n.Quantity)
	case IngredientAdded:
		return fmt.Sprintf("new ingredient %s added (%d)", n.Ingredient, n.Quantity)
	case DuplicateRecipe:
		return fmt.Sprintf("recipe %s already exists, keeping the later definition", n.Beverage)
	case DuplicateIngredient:
		return fmt.Sprintf("ingredient %s already exists, keeping the later quantity", n.Ingredient)
	case Recalibrated:
		return fmt.Sprintf("recipes recalibrated (%d beverages)", n.Quantity)
	default:
		return string(n.Kind)
	}
}

// Func receives notices. Implementations must be safe for concurrent use:
// outlets emit notices from their own goroutines.
type Func func(Notice)

// Discard drops every notice.
func Discard(Notice) {}

// Multi fans a notice out to every non-nil fn in order.
func Multi(fns ...Func) Func {
	var live []Func
	for _, fn := range fns {
		if fn != nil {
			live = append(live, fn)
		}
	}
	return func(n Notice) {
		for _, fn := range live {
			fn(n)
		}
	}
}

// Recorder collects notices in arrival order.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Record appends n. Its method value satisfies Func.
func (r *Recorder) Record(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many recorded notices match kind and, when ingredient is
// non-empty, that ingredient.
func (r *Recorder) Count(kind Kind, ingredient string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, n := range r.notices {
		if n.Kind == kind && (ingredient == "" || n.Ingredient == ingredient) {
			c++
		}
	}
	return c
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

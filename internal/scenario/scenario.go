// Package scenario runs scripted refill-and-prepare sequences against fresh
// machines and checks the outcomes against declared expectations.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/smileynet/barista/internal/dispense"
	"github.com/smileynet/barista/internal/machine"
)

// ErrExpectationsUnmet is returned by Run when any scenario fails a check.
var ErrExpectationsUnmet = errors.New("scenario: expectations unmet")

// StepKind identifies what a step does.
type StepKind int

const (
	RefillAll StepKind = iota
	Refill
	Prepare
)

func (k StepKind) String() string {
	switch k {
	case RefillAll:
		return "refill_all"
	case Refill:
		return "refill"
	case Prepare:
		return "prepare"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one action in a scenario.
type Step struct {
	Kind       StepKind
	Ingredient string            // Refill only.
	Amount     int               // RefillAll and Refill.
	Beverages  []string          // Prepare only.
	Expect     []dispense.Status // Prepare only; positional. Empty means unchecked.
}

// Scenario is a named sequence of steps run on a fresh machine.
type Scenario struct {
	Name        string
	Description string
	Outlets     int
	Capacity    int
	Steps       []Step
	Stock       map[string]int // Expected quantities after the last step.
}

// Mismatch is one failed check.
type Mismatch struct {
	Step    int    // Index into Steps, or -1 for the final stock check.
	Subject string // Beverage or ingredient.
	Want    string
	Got     string
}

func (m Mismatch) String() string {
	if m.Step < 0 {
		return fmt.Sprintf("stock %s: want %s, got %s", m.Subject, m.Want, m.Got)
	}
	return fmt.Sprintf("step %d %s: want %s, got %s", m.Step+1, m.Subject, m.Want, m.Got)
}

// Result records one scenario run.
type Result struct {
	Name       string
	Batches    []machine.Batch
	Mismatches []Mismatch
	Err        error // Setup or step error; the scenario stopped early.
}

// Passed reports whether the scenario ran to completion with every check met.
func (r Result) Passed() bool { return r.Err == nil && len(r.Mismatches) == 0 }

// Builder creates a fresh machine for a scenario.
type Builder func(outlets, capacity int) (*machine.Machine, error)

// Callback receives scenario lifecycle events for display.
type Callback interface {
	OnScenarioStart(s Scenario)
	OnStep(s Scenario, index int, step Step)
	OnBatch(s Scenario, b machine.Batch)
	OnScenarioComplete(r Result)
}

// Runner executes scenarios sequentially.
type Runner struct {
	build    Builder
	callback Callback
}

// NewRunner creates a Runner. A nil callback is allowed.
func NewRunner(build Builder, callback Callback) *Runner {
	if callback == nil {
		callback = nopCallback{}
	}
	return &Runner{build: build, callback: callback}
}

// Run executes every scenario in order and returns their results. The error
// is ErrExpectationsUnmet if any scenario failed, or ctx's error if ctx was
// cancelled between scenarios.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))
	failed := 0
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.runOne(ctx, s)
		if !res.Passed() {
			failed++
		}
		results = append(results, res)
	}
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d scenarios failed", ErrExpectationsUnmet, failed, len(scenarios))
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, s Scenario) Result {
	res := Result{Name: s.Name}
	r.callback.OnScenarioStart(s)
	defer func() { r.callback.OnScenarioComplete(res) }()

	m, err := r.build(s.Outlets, s.Capacity)
	if err != nil {
		res.Err = fmt.Errorf("scenario %s: building machine: %w", s.Name, err)
		return res
	}

	for i, step := range s.Steps {
		r.callback.OnStep(s, i, step)
		switch step.Kind {
		case RefillAll:
			if _, err := m.RefillAllIngredients(ctx, step.Amount); err != nil {
				res.Err = fmt.Errorf("scenario %s: step %d: %w", s.Name, i+1, err)
				return res
			}
		case Refill:
			if _, err := m.RefillIngredient(ctx, step.Ingredient, step.Amount); err != nil {
				res.Err = fmt.Errorf("scenario %s: step %d: %w", s.Name, i+1, err)
				return res
			}
		case Prepare:
			b := m.PrepareBatch(ctx, step.Beverages)
			res.Batches = append(res.Batches, b)
			r.callback.OnBatch(s, b)
			res.Mismatches = append(res.Mismatches, checkBatch(i, step, b)...)
		}
	}

	res.Mismatches = append(res.Mismatches, checkStock(s.Stock, m)...)
	return res
}

func checkBatch(index int, step Step, b machine.Batch) []Mismatch {
	var out []Mismatch
	for i, want := range step.Expect {
		got := b.Results[i]
		if got.Status != want {
			out = append(out, Mismatch{Step: index, Subject: got.Beverage, Want: string(want), Got: string(got.Status)})
		}
	}
	return out
}

func checkStock(want map[string]int, m *machine.Machine) []Mismatch {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Mismatch
	for _, name := range names {
		got, ok := m.Quantity(name)
		gotStr := fmt.Sprint(got)
		if !ok {
			gotStr = "absent"
		}
		if !ok || got != want[name] {
			out = append(out, Mismatch{Step: -1, Subject: name, Want: fmt.Sprint(want[name]), Got: gotStr})
		}
	}
	return out
}

type nopCallback struct{}

func (nopCallback) OnScenarioStart(Scenario) {}
func (nopCallback) OnStep(Scenario, int, Step) {}
func (nopCallback) OnBatch(Scenario, machine.Batch) {}
func (nopCallback) OnScenarioComplete(Result) {}

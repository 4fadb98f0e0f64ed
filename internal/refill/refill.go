// Package refill adds ingredient stock on behalf of operators.
package refill

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/smileynet/barista/internal/inventory"
)

// Refiller is the inventory surface a Manager needs.
type Refiller interface {
	Refill(name string, amount int) (inventory.RefillResult, error)
	RefillAll(amount int) ([]inventory.RefillResult, error)
}

// Manager forwards refill requests to an inventory, optionally throttled.
type Manager struct {
	inv     Refiller
	limiter *rate.Limiter
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimiter throttles refill requests. Each Refill or RefillAll call takes
// one token. A nil limiter disables throttling.
func WithLimiter(l *rate.Limiter) Option {
	return func(m *Manager) { m.limiter = l }
}

// New creates a Manager over inv.
func New(inv Refiller, opts ...Option) *Manager {
	m := &Manager{inv: inv}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refill adds amount to one ingredient, creating it if absent.
func (m *Manager) Refill(ctx context.Context, name string, amount int) (inventory.RefillResult, error) {
	if err := m.wait(ctx); err != nil {
		return inventory.RefillResult{Ingredient: name}, err
	}
	return m.inv.Refill(name, amount)
}

// RefillAll adds amount to every ingredient currently in stock.
func (m *Manager) RefillAll(ctx context.Context, amount int) ([]inventory.RefillResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.inv.RefillAll(amount)
}

func (m *Manager) wait(ctx context.Context) error {
	if m.limiter == nil {
		return ctx.Err()
	}
	if err := m.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("refill: rate limit: %w", err)
	}
	return nil
}

package notice

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TextWriter returns a Func that prints one timestamped line per notice to w.
// Lines from concurrent outlets are serialized.
func TextWriter(w io.Writer) Func {
	var mu sync.Mutex
	return func(n Notice) {
		ts := time.Now().Format("15:04:05")
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(w, "[%s] %s\n", ts, n)
	}
}

// ZapSink returns a Func that logs each notice with structured fields.
// Warnings log at warn level, failed dispenses at info, everything else at debug.
func ZapSink(logger *zap.Logger) Func {
	return func(n Notice) {
		fields := []zap.Field{zap.String("kind", string(n.Kind))}
		if n.Outlet > 0 {
			fields = append(fields, zap.Int("outlet", n.Outlet))
		}
		if n.Beverage != "" {
			fields = append(fields, zap.String("beverage", n.Beverage))
		}
		if n.Ingredient != "" {
			fields = append(fields, zap.String("ingredient", n.Ingredient))
			fields = append(fields, zap.Int("quantity", n.Quantity))
		}
		if n.Amount > 0 {
			fields = append(fields, zap.Int("amount", n.Amount))
		}

		switch {
		case n.Kind.Warning():
			logger.Warn(n.message(), fields...)
		case n.Kind.Failure():
			logger.Info(n.message(), fields...)
		default:
			logger.Debug(n.message(), fields...)
		}
	}
}

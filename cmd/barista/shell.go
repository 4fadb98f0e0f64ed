package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smileynet/barista/internal/machine"
	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/watch"
)

// errQuit ends the shell loop without an error.
var errQuit = errors.New("quit")

const shellHelp = `Commands:
  prepare <beverage>...        prepare beverages, one outlet each
  refill <ingredient> <amount> refill one ingredient
  refill-all <amount>          refill every ingredient
  recalibrate                  reload recipes from their source
  stock                        print ingredient levels
  recipes                      list beverages
  help                         show this help
  quit                         leave the shell
`

// ShellCmd reads machine commands from stdin, one per line.
type ShellCmd struct {
	MachineFlags `embed:""`

	Watch bool `help:"Recalibrate whenever the recipe file changes."`
}

// Run executes the shell command.
func (s *ShellCmd) Run() error {
	cfg, logger, err := setup(s.MachineFlags)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	m, err := newMachine(cfg, notice.Multi(notice.ZapSink(logger), notice.TextWriter(os.Stdout)))
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if s.Watch {
		if _, err := startWatcher(ctx, recipePath(cfg), m, logger); err != nil {
			return fmt.Errorf("shell: %w", err)
		}
	}

	return s.run(ctx, os.Stdin, os.Stdout, m)
}

// startWatcher follows path and recalibrates r on change until ctx is done.
// A missing file is logged and leaves the shell running without a watcher,
// since the machine may be reading the embedded recipes.
func startWatcher(ctx context.Context, path string, r watch.Reloader, logger *zap.Logger) (*watch.Watcher, error) {
	w, err := watch.New(path, r, watch.WithLogger(logger))
	if errors.Is(err, watch.ErrNotExist) {
		logger.Warn("recipe watching disabled: create .barista/recipes.yaml or set sources.recipes",
			zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("recipe watcher stopped", zap.Error(err))
		}
	}()
	logger.Info("watching recipes", zap.String("path", w.Path()))
	return w, nil
}

// run executes lines from in until EOF, quit, or ctx is done.
func (s *ShellCmd) run(ctx context.Context, in io.Reader, w io.Writer, m *machine.Machine) error {
	_, _ = fmt.Fprintf(w, "barista: %d outlets, %d beverages. Type help for commands.\n", m.Outlets(), len(m.Recipes()))

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := execLine(ctx, w, m, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprintf(w, "error: %s\n", err)
		}
	}
	_, _ = fmt.Fprintln(w)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("shell: reading input: %w", err)
	}
	return nil
}

// execLine runs one shell command. Errors are reported to the user and do
// not end the session, except errQuit.
func execLine(ctx context.Context, w io.Writer, m *machine.Machine, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "prepare":
		if len(args) == 0 {
			return errors.New("prepare needs at least one beverage")
		}
		batch := m.PrepareBatch(ctx, args)
		_, _ = fmt.Fprintf(w, "%d/%d prepared\n", batch.Prepared(), len(batch.Results))

	case "refill":
		if len(args) != 2 {
			return errors.New("usage: refill <ingredient> <amount>")
		}
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		if _, err := m.RefillIngredient(ctx, args[0], amount); err != nil {
			return err
		}

	case "refill-all":
		if len(args) != 1 {
			return errors.New("usage: refill-all <amount>")
		}
		amount, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[0])
		}
		if _, err := m.RefillAllIngredients(ctx, amount); err != nil {
			return err
		}

	case "recalibrate":
		return m.Recalibrate()

	case "stock":
		printStock(w, m.Stock())

	case "recipes":
		printRecipes(w, m.Recipes())

	case "help":
		_, _ = fmt.Fprint(w, shellHelp)

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/smileynet/barista"
	"github.com/smileynet/barista/internal/config"
	"github.com/smileynet/barista/internal/dispense"
	"github.com/smileynet/barista/internal/inventory"
	"github.com/smileynet/barista/internal/logging"
	"github.com/smileynet/barista/internal/machine"
	"github.com/smileynet/barista/internal/notice"
	"github.com/smileynet/barista/internal/recipe"
	"github.com/smileynet/barista/internal/report"
	"github.com/smileynet/barista/internal/scenario"
	"github.com/smileynet/barista/internal/source"
	"github.com/smileynet/barista/internal/tui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// localDir holds project overrides for the embedded default documents.
const localDir = ".barista"

// CLI is the top-level command structure for barista.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Prepare PrepareCmd       `cmd:"" help:"Prepare beverages on the machine's outlets."`
	Demo    DemoCmd          `cmd:"" help:"Run the demo scenarios and check their outcomes."`
	Recipes RecipesCmd       `cmd:"" help:"List known beverages and their ingredients."`
	Stock   StockCmd         `cmd:"" help:"Print ingredient levels."`
	Reports ReportsCmd       `cmd:"" help:"List saved batch reports, or show one."`
	Shell   ShellCmd         `cmd:"" help:"Operate a machine interactively."`
}

// MachineFlags override the machine section of the config.
type MachineFlags struct {
	Outlets  int `help:"Number of outlets (overrides machine.outlets)."`
	Capacity int `help:"Per-ingredient capacity (overrides machine.capacity)."`
}

// errNotPrepared is returned by prepare --strict when a beverage failed.
var errNotPrepared = errors.New("not every beverage was prepared")

// loadConfig loads layered config from user and project paths with env and
// flag overrides, then validates it.
func loadConfig(flags MachineFlags) (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/barista/config.yaml"),
		filepath.Join(localDir, "config.yaml"),
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if flags.Outlets != 0 {
		cfg.Machine.Outlets = flags.Outlets
	}
	if flags.Capacity != 0 {
		cfg.Machine.Capacity = flags.Capacity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and builds the diagnostics logger.
func setup(flags MachineFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// documentSource returns the configured file, or the named default document
// from .barista/ falling back to the embedded copy.
func documentSource(path, name string) source.Source {
	if path != "" {
		return source.File{Path: path}
	}
	return source.File{FS: barista.OverlayFS(localDir, barista.Defaults), Path: name}
}

// recipePath returns the on-disk recipe file a watcher should follow.
func recipePath(cfg *config.Config) string {
	if cfg.Sources.Recipes != "" {
		return cfg.Sources.Recipes
	}
	return filepath.Join(localDir, barista.RecipesFile)
}

// newMachine builds a machine from cfg.
func newMachine(cfg *config.Config, notify notice.Func) (*machine.Machine, error) {
	return machine.New(machine.Options{
		Outlets:       cfg.Machine.Outlets,
		Capacity:      cfg.Machine.Capacity,
		Recipes:       documentSource(cfg.Sources.Recipes, barista.RecipesFile),
		Ingredients:   documentSource(cfg.Sources.Ingredients, barista.IngredientsFile),
		Notify:        notify,
		RefillLimiter: cfg.RefillLimiter(),
	})
}

// machineBuilder creates a machine wired to notify.
type machineBuilder func(notify notice.Func) (*machine.Machine, error)

// refiller abstracts the machine's refill operations for testing.
type refiller interface {
	RefillIngredient(ctx context.Context, name string, amount int) (inventory.RefillResult, error)
	RefillAllIngredients(ctx context.Context, amount int) ([]inventory.RefillResult, error)
}

// applyRefills runs the refill-all amount first, then each named refill in
// name order. Zero amounts are skipped.
func applyRefills(ctx context.Context, m refiller, all int, each map[string]int) error {
	if all != 0 {
		if _, err := m.RefillAllIngredients(ctx, all); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(each))
	for name := range each {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if each[name] == 0 {
			continue
		}
		if _, err := m.RefillIngredient(ctx, name, each[name]); err != nil {
			return err
		}
	}
	return nil
}

// --- Prepare command ---

// PrepareCmd refills the machine and prepares a batch of beverages.
type PrepareCmd struct {
	MachineFlags `embed:""`

	Beverages  []string       `arg:"" help:"Beverages to prepare."`
	RefillAll  int            `help:"Refill every ingredient by this amount first." name:"refill-all"`
	Refill     map[string]int `help:"Refill one ingredient first (name=amount). Repeatable."`
	NoTUI      bool           `help:"Force plain text output even if stdout is a TTY." default:"false"`
	SaveReport bool           `help:"Save a JSON batch report under reports.dir." name:"save-report"`
	Strict     bool           `help:"Exit 1 if any beverage was not prepared."`
}

// reportSaver abstracts report.FileStore for testing.
type reportSaver interface {
	Save(r report.Report) (string, error)
}

// Run executes the prepare command.
func (p *PrepareCmd) Run() error {
	cfg, logger, err := setup(p.MachineFlags)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// The cancel func is passed to the TUI so keyboard abort (q / Ctrl+C)
	// stops queued beverages without killing brewing ones.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: p.NoTUI,
		Beverages:  p.Beverages,
		CancelFunc: cancel,
	})
	build := func(notify notice.Func) (*machine.Machine, error) {
		return newMachine(cfg, notice.Multi(notice.ZapSink(logger), notify))
	}

	return p.run(ctx, os.Stdout, build, display, bridge, report.NewFileStore(cfg.Reports.Dir))
}

// run executes the batch with display lifecycle management, enabling testable wiring.
func (p *PrepareCmd) run(ctx context.Context, w io.Writer, build machineBuilder, display tui.Display, bridge *tui.Bridge, reports reportSaver) error {
	displayDone := make(chan error, 1)
	go func() {
		displayDone <- display.Run(context.Background(), bridge.Events())
	}()

	batch, m, err := p.prepare(ctx, build, bridge)
	if err != nil {
		bridge.Error(err)
	} else {
		bridge.Done()
	}

	// Wait for display to finish (so it releases the terminal).
	<-displayDone

	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if p.SaveReport {
		path, err := reports.Save(report.New(batch, m.Stock()))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		_, _ = fmt.Fprintf(w, "Report: %s\n", path)
	}

	if p.Strict {
		if failed := len(batch.Results) - batch.Prepared(); failed > 0 {
			return fmt.Errorf("prepare: %w (%d of %d failed)", errNotPrepared, failed, len(batch.Results))
		}
	}
	return nil
}

func (p *PrepareCmd) prepare(ctx context.Context, build machineBuilder, bridge *tui.Bridge) (machine.Batch, *machine.Machine, error) {
	m, err := build(bridgeNotices(bridge))
	if err != nil {
		return machine.Batch{}, nil, err
	}
	if err := applyRefills(ctx, m, p.RefillAll, p.Refill); err != nil {
		return machine.Batch{}, nil, err
	}
	return m.PrepareBatchFunc(ctx, p.Beverages, bridgeProgress(bridge)), m, nil
}

// bridgeNotices forwards inventory and recipe notices to the display.
// Dispense outcomes are skipped because order updates already carry them.
func bridgeNotices(bridge *tui.Bridge) notice.Func {
	return func(n notice.Notice) {
		if n.Kind == notice.Prepared || n.Kind.Failure() {
			return
		}
		bridge.Notice(tui.NoticeMsg{Text: n.String(), Warning: n.Kind.Warning()})
	}
}

// bridgeProgress converts machine progress into display order updates.
func bridgeProgress(bridge *tui.Bridge) func(machine.Progress) {
	return func(p machine.Progress) {
		msg := tui.OrderUpdateMsg{
			Index:    p.Index,
			Beverage: p.Beverage,
			Status:   tui.StatusBrewing,
			Outlet:   p.Outlet,
		}
		if p.Done {
			msg.Status = tui.OrderStatus(p.Result.Status)
			msg.Ingredient = p.Result.Ingredient
		}
		bridge.Order(msg)
	}
}

// --- Demo command ---

// DemoCmd runs scripted scenarios against fresh machines.
type DemoCmd struct {
	Scenarios string   `help:"Scenario file (default: sources.scenarios or the built-in demo)." type:"path"`
	Only      []string `help:"Run only the named scenarios."`
}

// Run executes the demo command.
func (d *DemoCmd) Run() error {
	cfg, logger, err := setup(MachineFlags{})
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	path := d.Scenarios
	if path == "" {
		path = cfg.Sources.Scenarios
	}
	scenarios, err := scenario.Load(documentSource(path, barista.ScenariosFile))
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	build := func(outlets, capacity int) (*machine.Machine, error) {
		c := *cfg
		c.Machine.Outlets = outlets
		c.Machine.Capacity = capacity
		return newMachine(&c, notice.ZapSink(logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return d.run(ctx, os.Stdout, scenarios, build)
}

// run filters and executes the scenarios, enabling testable wiring.
func (d *DemoCmd) run(ctx context.Context, w io.Writer, scenarios []scenario.Scenario, build scenario.Builder) error {
	selected, err := selectScenarios(scenarios, d.Only)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	results, err := scenario.NewRunner(build, &demoCallback{w: w}).Run(ctx, selected)

	passed := 0
	for _, r := range results {
		if r.Passed() {
			passed++
		}
	}
	_, _ = fmt.Fprintf(w, "\n%d/%d scenarios passed\n", passed, len(selected))

	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	return nil
}

// selectScenarios keeps the named scenarios in file order. No names keeps all.
func selectScenarios(all []scenario.Scenario, names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []scenario.Scenario
	for _, s := range all {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown scenario(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// demoCallback prints scenario progress as plain text.
type demoCallback struct {
	w io.Writer
}

func (c *demoCallback) OnScenarioStart(s scenario.Scenario) {
	_, _ = fmt.Fprintf(c.w, "\n== %s (%d outlets)\n", s.Name, s.Outlets)
	if s.Description != "" {
		_, _ = fmt.Fprintf(c.w, "   %s\n", s.Description)
	}
}

func (c *demoCallback) OnStep(_ scenario.Scenario, index int, step scenario.Step) {
	switch step.Kind {
	case scenario.RefillAll:
		_, _ = fmt.Fprintf(c.w, "%d. refill every ingredient by %d\n", index+1, step.Amount)
	case scenario.Refill:
		_, _ = fmt.Fprintf(c.w, "%d. refill %s by %d\n", index+1, step.Ingredient, step.Amount)
	case scenario.Prepare:
		_, _ = fmt.Fprintf(c.w, "%d. prepare %s\n", index+1, strings.Join(step.Beverages, ", "))
	}
}

func (c *demoCallback) OnBatch(_ scenario.Scenario, b machine.Batch) {
	for _, r := range b.Results {
		_, _ = fmt.Fprintf(c.w, "   %s\n", resultLine(r))
	}
}

func (c *demoCallback) OnScenarioComplete(r scenario.Result) {
	switch {
	case r.Err != nil:
		_, _ = fmt.Fprintf(c.w, "FAIL %s: %v\n", r.Name, r.Err)
	case len(r.Mismatches) > 0:
		_, _ = fmt.Fprintf(c.w, "FAIL %s\n", r.Name)
		for _, m := range r.Mismatches {
			_, _ = fmt.Fprintf(c.w, "     %s\n", m)
		}
	default:
		_, _ = fmt.Fprintf(c.w, "PASS %s\n", r.Name)
	}
}

// resultLine renders one dispense result.
func resultLine(r dispense.Result) string {
	where := "queued"
	if r.Outlet > 0 {
		where = fmt.Sprintf("outlet %d", r.Outlet)
	}
	line := fmt.Sprintf("[%s] %s %s", where, r.Beverage, r.Status)
	if r.Ingredient != "" {
		line += ": " + r.Ingredient
	}
	return line
}

// --- Recipes command ---

// RecipesCmd lists the beverages the machine knows.
type RecipesCmd struct{}

// Run executes the recipes command.
func (r *RecipesCmd) Run() error {
	cfg, err := loadConfig(MachineFlags{})
	if err != nil {
		return fmt.Errorf("recipes: %w", err)
	}
	m, err := newMachine(cfg, nil)
	if err != nil {
		return fmt.Errorf("recipes: %w", err)
	}
	printRecipes(os.Stdout, m.Recipes())
	return nil
}

func printRecipes(w io.Writer, recipes []recipe.Recipe) {
	for _, r := range recipes {
		parts := make([]string, len(r.Ingredients))
		for i, req := range r.Ingredients {
			parts[i] = fmt.Sprintf("%s %d", req.Ingredient, req.Quantity)
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", r.Name, strings.Join(parts, ", "))
	}
}

// --- Stock command ---

// StockCmd prints ingredient levels, optionally after a refill.
type StockCmd struct {
	MachineFlags `embed:""`

	RefillAll int `help:"Refill every ingredient by this amount first." name:"refill-all"`
}

// Run executes the stock command.
func (s *StockCmd) Run() error {
	cfg, err := loadConfig(s.MachineFlags)
	if err != nil {
		return fmt.Errorf("stock: %w", err)
	}
	m, err := newMachine(cfg, nil)
	if err != nil {
		return fmt.Errorf("stock: %w", err)
	}
	return s.run(context.Background(), os.Stdout, m)
}

// run refills and prints m's stock, enabling testable wiring.
func (s *StockCmd) run(ctx context.Context, w io.Writer, m *machine.Machine) error {
	if err := applyRefills(ctx, m, s.RefillAll, nil); err != nil {
		return fmt.Errorf("stock: %w", err)
	}
	printStock(w, m.Stock())
	return nil
}

func printStock(w io.Writer, levels []inventory.Level) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range levels {
		low := ""
		if l.Low {
			low = "low"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", l.Name, l.Quantity, low)
	}
	_ = tw.Flush()
}

// --- Reports command ---

// ReportsCmd lists saved batch reports, prints one, or removes one.
type ReportsCmd struct {
	ID     string `arg:"" optional:"" help:"Report ID to show."`
	Remove bool   `help:"Delete the report instead of showing it."`
}

// reportStore abstracts report.FileStore for testing.
type reportStore interface {
	Load(id string) (report.Report, bool, error)
	List() ([]string, error)
	Remove(id string) error
}

// Run executes the reports command.
func (r *ReportsCmd) Run() error {
	cfg, err := loadConfig(MachineFlags{})
	if err != nil {
		return fmt.Errorf("reports: %w", err)
	}
	return r.run(os.Stdout, report.NewFileStore(cfg.Reports.Dir))
}

// run prints from the given store, enabling testable wiring.
func (r *ReportsCmd) run(w io.Writer, store reportStore) error {
	if r.Remove {
		if r.ID == "" {
			return errors.New("reports: --remove needs a report ID")
		}
		if err := store.Remove(r.ID); err != nil {
			return fmt.Errorf("reports: %w", err)
		}
		_, _ = fmt.Fprintf(w, "Removed %s\n", r.ID)
		return nil
	}

	if r.ID == "" {
		ids, err := store.List()
		if err != nil {
			return fmt.Errorf("reports: %w", err)
		}
		if len(ids) == 0 {
			_, _ = fmt.Fprintln(w, "No reports saved.")
			return nil
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(w, id)
		}
		return nil
	}

	rep, ok, err := store.Load(r.ID)
	if err != nil {
		return fmt.Errorf("reports: %w", err)
	}
	if !ok {
		return fmt.Errorf("reports: no report %q", r.ID)
	}
	_, _ = fmt.Fprintf(w, "Batch %s on %d outlets, %s\n", rep.ID, rep.Outlets, rep.Finished.Sub(rep.Started).Round(time.Millisecond))
	for _, res := range rep.Results {
		_, _ = fmt.Fprintf(w, "  %s\n", resultLine(res))
	}
	_, _ = fmt.Fprintln(w, "Stock:")
	printStock(w, rep.Stock)
	return nil
}

// --- Exit codes ---

const (
	exitSuccess = 0
	exitFailure = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, scenario.ErrExpectationsUnmet) ||
		errors.Is(err, errNotPrepared) ||
		errors.Is(err, context.Canceled) {
		return exitFailure
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Description("A concurrent beverage machine."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

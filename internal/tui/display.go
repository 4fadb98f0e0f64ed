package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// DisplayEvent is an event sent to a Display via the update channel.
// Implemented by OrderUpdateMsg, NoticeMsg, BatchDoneMsg, and BatchErrorMsg.
type DisplayEvent interface {
	isDisplayEvent()
}

func (OrderUpdateMsg) isDisplayEvent() {}
func (NoticeMsg) isDisplayEvent()      {}
func (BatchDoneMsg) isDisplayEvent()   {}
func (BatchErrorMsg) isDisplayEvent()  {}

// Verify at compile time that message types implement DisplayEvent.
var (
	_ DisplayEvent = OrderUpdateMsg{}
	_ DisplayEvent = NoticeMsg{}
	_ DisplayEvent = BatchDoneMsg{}
	_ DisplayEvent = BatchErrorMsg{}
)

// Display renders batch progress.
type Display interface {
	Run(ctx context.Context, events <-chan DisplayEvent) error
}

// DisplayOptions configures display creation.
type DisplayOptions struct {
	Writer     io.Writer          // Output destination (default: os.Stdout).
	ForcePlain bool               // Force plain text even if TTY.
	Beverages  []string           // Batch order for TUI initialization.
	CancelFunc context.CancelFunc // Called by TUI on abort keypress (ignored by PlainDisplay).
}

// NewDisplay returns a TUI display when stdout is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func NewDisplay(opts DisplayOptions) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer}
	}

	return &TUIDisplay{beverages: opts.Beverages, w: opts.Writer, cancelFunc: opts.CancelFunc}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bridge manages the channel between batch producers and a Display consumer.
// Order and Notice may be called from many goroutines; Done and Error must be
// called once, after every producer has returned.
type Bridge struct {
	ch chan DisplayEvent
}

// NewBridge creates a Bridge with a buffered event channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan DisplayEvent, 16)}
}

// Events returns the read-only channel for Display.Run() to consume.
func (b *Bridge) Events() <-chan DisplayEvent {
	return b.ch
}

// Order delivers an OrderUpdateMsg to the display.
// It blocks if the channel buffer (16) is full.
func (b *Bridge) Order(msg OrderUpdateMsg) {
	b.ch <- msg
}

// Notice delivers a NoticeMsg to the display.
func (b *Bridge) Notice(msg NoticeMsg) {
	b.ch <- msg
}

// Done signals batch completion and closes the channel.
func (b *Bridge) Done() {
	b.ch <- BatchDoneMsg{}
	close(b.ch)
}

// Error signals batch failure and closes the channel.
func (b *Bridge) Error(err error) {
	b.ch <- BatchErrorMsg{Err: err}
	close(b.ch)
}

// PlainDisplay renders batch progress as timestamped text lines.
type PlainDisplay struct {
	w io.Writer
}

// Run loops over events, printing each as a text line.
// Returns the batch error if the batch failed, or context error if cancelled.
func (d *PlainDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case OrderUpdateMsg:
				d.renderOrder(msg)
			case NoticeMsg:
				d.renderNotice(msg)
			case BatchDoneMsg:
				return nil
			case BatchErrorMsg:
				return msg.Err
			}
		}
	}
}

func (d *PlainDisplay) renderOrder(msg OrderUpdateMsg) {
	ts := time.Now().Format("15:04:05")
	outlet := "queued"
	if msg.Outlet > 0 {
		outlet = fmt.Sprintf("outlet %d", msg.Outlet)
	}
	detail := ""
	if msg.Ingredient != "" {
		detail = ": " + msg.Ingredient
	}
	_, _ = fmt.Fprintf(d.w, "[%s] [%s] %s %s%s\n", ts, outlet, msg.Beverage, msg.Status, detail)
}

func (d *PlainDisplay) renderNotice(msg NoticeMsg) {
	ts := time.Now().Format("15:04:05")
	prefix := ""
	if msg.Warning {
		prefix = "! "
	}
	_, _ = fmt.Fprintf(d.w, "[%s] %s%s\n", ts, prefix, msg.Text)
}

// TUIDisplay renders batch progress using a Bubble Tea terminal UI.
// Falls back to PlainDisplay if the TUI program fails to start.
type TUIDisplay struct {
	beverages  []string
	w          io.Writer
	cancelFunc context.CancelFunc
}

// Run starts the Bubble Tea program and feeds events from the channel.
// If the TUI fails to initialize, it falls back to plain text output.
func (d *TUIDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	var opts []ModelOption
	if d.cancelFunc != nil {
		opts = append(opts, WithCancelFunc(d.cancelFunc))
	}
	model := NewModel(d.beverages, opts...)
	p := tea.NewProgram(model, tea.WithOutput(d.w), tea.WithContext(ctx))

	// Forward events through an intermediate channel so we can stop
	// the goroutine cleanly on TUI failure before falling back.
	fwd := make(chan DisplayEvent, 16)
	stop := make(chan struct{})

	go func() {
		defer close(fwd)
		for ev := range events {
			select {
			case fwd <- ev:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for ev := range fwd {
			p.Send(ev)
		}
	}()

	final, err := p.Run()
	if err != nil {
		close(stop)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Fall back to plain text for remaining events from the bridge.
		plain := &PlainDisplay{w: d.w}
		return plain.Run(ctx, events)
	}

	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// OrderStatus represents the current state of one beverage in the TUI.
// Terminal values mirror dispense.Status so the caller can convert directly,
// keeping the tui package decoupled from the machine.
type OrderStatus string

const (
	StatusQueued          OrderStatus = "queued"
	StatusBrewing         OrderStatus = "brewing"
	StatusPrepared        OrderStatus = "prepared"
	StatusUnknownBeverage OrderStatus = "unknown_beverage"
	StatusUnavailable     OrderStatus = "unavailable"
	StatusInsufficient    OrderStatus = "insufficient"
	StatusCancelled       OrderStatus = "cancelled"
)

// maxNotices caps how many recent notices the model keeps on screen.
const maxNotices = 6

// OrderState tracks the display state of a single beverage request.
type OrderState struct {
	Beverage   string
	Status     OrderStatus
	Outlet     int
	Ingredient string // Failing ingredient, if any.
	Started    time.Time
	Duration   time.Duration
}

// Model is the Bubble Tea model for a beverage batch.
type Model struct {
	orders     []OrderState
	notices    []NoticeMsg
	spinner    spinner.Model
	help       help.Model
	done       bool
	aborting   bool
	err        error
	cancelFunc func()
	startTime  time.Time
	elapsed    time.Duration
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithCancelFunc sets the function called on the first q/ctrl+c. A second
// press forces the program to quit.
func WithCancelFunc(fn func()) ModelOption {
	return func(m *Model) { m.cancelFunc = fn }
}

// OrderUpdateMsg reports a state change for the order at Index.
type OrderUpdateMsg struct {
	Index      int
	Beverage   string
	Status     OrderStatus
	Outlet     int
	Ingredient string
}

// NoticeMsg carries a machine notice to the display.
type NoticeMsg struct {
	Text    string
	Warning bool
}

// BatchDoneMsg signals that every order in the batch has finished.
type BatchDoneMsg struct{}

// BatchErrorMsg signals that the batch could not run.
type BatchErrorMsg struct {
	Err error
}

// NewModel creates a Model with one queued order per beverage.
func NewModel(beverages []string, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = brewingStyle

	orders := make([]OrderState, len(beverages))
	for i, name := range beverages {
		orders[i] = OrderState{Beverage: name, Status: StatusQueued}
	}

	m := Model{
		orders:    orders,
		spinner:   s,
		help:      help.New(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case OrderUpdateMsg:
		if msg.Index < 0 || msg.Index >= len(m.orders) {
			return m, nil
		}
		o := &m.orders[msg.Index]
		o.Status = msg.Status
		if msg.Outlet > 0 {
			o.Outlet = msg.Outlet
		}
		o.Ingredient = msg.Ingredient
		switch {
		case msg.Status == StatusBrewing:
			o.Started = time.Now()
		case !o.Started.IsZero():
			o.Duration = time.Since(o.Started)
		}
		return m, nil

	case NoticeMsg:
		m.notices = append(m.notices, msg)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, nil

	case BatchDoneMsg:
		m.done = true
		m.aborting = false
		m.elapsed = time.Since(m.startTime)
		return m, tea.Quit

	case BatchErrorMsg:
		m.done = true
		m.aborting = false
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		if key.Matches(msg, m.keys().Quit) {
			if m.cancelFunc != nil && !m.aborting {
				m.aborting = true
				m.cancelFunc()
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

var (
	preparedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	brewingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	queuedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "208", Dark: "214"})
)

// View renders the order list, recent notices, and a summary footer.
func (m Model) View() string {
	var b strings.Builder

	width := 0
	for _, o := range m.orders {
		width = max(width, len(o.Beverage))
	}

	for _, o := range m.orders {
		indicator := orderIndicator(o.Status, m.spinner.View())
		fmt.Fprintf(&b, "  %s %s", indicator, orderName(o.Status, fmt.Sprintf("%-*s", width, o.Beverage)))
		if o.Outlet > 0 {
			fmt.Fprintf(&b, "  %s", detailStyle.Render(fmt.Sprintf("outlet %d", o.Outlet)))
		}
		switch o.Status {
		case StatusUnavailable, StatusInsufficient:
			fmt.Fprintf(&b, "  %s", failedStyle.Render(fmt.Sprintf("%s %s", o.Ingredient, strings.ReplaceAll(string(o.Status), "_", " "))))
		case StatusUnknownBeverage:
			fmt.Fprintf(&b, "  %s", failedStyle.Render("unknown beverage"))
		case StatusCancelled:
			fmt.Fprintf(&b, "  %s", queuedStyle.Render("cancelled"))
		}
		if o.Duration > 0 {
			fmt.Fprintf(&b, " %s", detailStyle.Render(fmt.Sprintf("%.1fs", o.Duration.Seconds())))
		}
		b.WriteByte('\n')
	}

	if len(m.notices) > 0 {
		b.WriteByte('\n')
		for _, n := range m.notices {
			if n.Warning {
				fmt.Fprintf(&b, "  %s %s\n", warningStyle.Render("!"), n.Text)
			} else {
				fmt.Fprintf(&b, "  %s\n", detailStyle.Render(n.Text))
			}
		}
	}

	switch {
	case m.done && m.err != nil:
		fmt.Fprintf(&b, "\n  Error: %s\n", m.err)
	case m.done:
		fmt.Fprintf(&b, "\n  %d/%d prepared in %.1fs\n", m.prepared(), len(m.orders), m.elapsed.Seconds())
	case m.aborting:
		b.WriteString("\n  Cancelling queued orders... (press q again to force quit)\n")
	}

	if !m.done {
		fmt.Fprintf(&b, "\n  %s\n", m.help.View(m.keys()))
	}

	return b.String()
}

// keys returns the bindings for the current state.
func (m Model) keys() batchKeys {
	if m.aborting {
		return AbortingKeyMap()
	}
	return BatchKeyMap()
}

func (m Model) prepared() int {
	n := 0
	for _, o := range m.orders {
		if o.Status == StatusPrepared {
			n++
		}
	}
	return n
}

// orderIndicator returns the Unicode indicator for an order status.
func orderIndicator(status OrderStatus, spinnerView string) string {
	switch status {
	case StatusQueued:
		return queuedStyle.Render("○")
	case StatusBrewing:
		return spinnerView
	case StatusPrepared:
		return preparedStyle.Render("✓")
	case StatusUnknownBeverage, StatusUnavailable, StatusInsufficient:
		return failedStyle.Render("✗")
	case StatusCancelled:
		return queuedStyle.Render("–")
	default:
		return "?"
	}
}

func orderName(status OrderStatus, name string) string {
	switch status {
	case StatusQueued, StatusCancelled:
		return queuedStyle.Render(name)
	case StatusBrewing:
		return brewingStyle.Render(name)
	default:
		return name
	}
}

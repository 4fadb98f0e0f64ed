package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	updated, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return updated, cmd
}

func TestNewModel_QueuesEveryBeverage(t *testing.T) {
	beverages := []string{"hot_tea", "hot_coffee", "hot_tea"}
	m := NewModel(beverages)

	if got := len(m.orders); got != 3 {
		t.Fatalf("orders count = %d, want 3", got)
	}
	for i, name := range beverages {
		if m.orders[i].Beverage != name {
			t.Errorf("orders[%d].Beverage = %q, want %q", i, m.orders[i].Beverage, name)
		}
		if m.orders[i].Status != StatusQueued {
			t.Errorf("orders[%d].Status = %q, want %q", i, m.orders[i].Status, StatusQueued)
		}
	}
	if m.done {
		t.Error("new model should not be done")
	}
}

func TestNewModel_Empty(t *testing.T) {
	m := NewModel(nil)
	if len(m.orders) != 0 {
		t.Fatalf("orders count = %d, want 0", len(m.orders))
	}
}

func TestModel_Init_ReturnsTickCmd(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	if m.Init() == nil {
		t.Fatal("Init() should return a non-nil Cmd for the spinner")
	}
}

func TestModel_Update_OrderBrewing(t *testing.T) {
	m := NewModel([]string{"hot_tea", "black_tea"})

	m, _ = update(t, m, OrderUpdateMsg{Index: 1, Beverage: "black_tea", Status: StatusBrewing, Outlet: 3})

	o := m.orders[1]
	if o.Status != StatusBrewing {
		t.Errorf("status = %q, want %q", o.Status, StatusBrewing)
	}
	if o.Outlet != 3 {
		t.Errorf("outlet = %d, want 3", o.Outlet)
	}
	if o.Started.IsZero() {
		t.Error("brewing should record a start time")
	}
	if m.orders[0].Status != StatusQueued {
		t.Errorf("other order status = %q, want unchanged", m.orders[0].Status)
	}
}

func TestModel_Update_OrderOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		status     OrderStatus
		ingredient string
	}{
		{name: "prepared", status: StatusPrepared},
		{name: "unavailable", status: StatusUnavailable, ingredient: "green_mixture"},
		{name: "insufficient", status: StatusInsufficient, ingredient: "hot_water"},
		{name: "unknown", status: StatusUnknownBeverage},
		{name: "cancelled", status: StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel([]string{"green_tea"})
			m, _ = update(t, m, OrderUpdateMsg{Index: 0, Status: StatusBrewing, Outlet: 1})
			m, _ = update(t, m, OrderUpdateMsg{Index: 0, Status: tt.status, Outlet: 1, Ingredient: tt.ingredient})

			o := m.orders[0]
			if o.Status != tt.status {
				t.Errorf("status = %q, want %q", o.Status, tt.status)
			}
			if o.Ingredient != tt.ingredient {
				t.Errorf("ingredient = %q, want %q", o.Ingredient, tt.ingredient)
			}
			if o.Started.IsZero() || o.Duration < 0 {
				t.Errorf("timing = %v / %v, want start and non-negative duration", o.Started, o.Duration)
			}
		})
	}
}

func TestModel_Update_OrderOutOfRange(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	for _, idx := range []int{-1, 1, 10} {
		m, _ = update(t, m, OrderUpdateMsg{Index: idx, Status: StatusPrepared})
	}

	if m.orders[0].Status != StatusQueued {
		t.Errorf("status = %q, want %q (unchanged)", m.orders[0].Status, StatusQueued)
	}
}

func TestModel_Update_NoticesCapped(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	for i := range maxNotices + 3 {
		m, _ = update(t, m, NoticeMsg{Text: strings.Repeat("x", i+1)})
	}

	if len(m.notices) != maxNotices {
		t.Fatalf("notices = %d, want %d", len(m.notices), maxNotices)
	}
	if got := m.notices[0].Text; got != strings.Repeat("x", 4) {
		t.Errorf("oldest kept notice = %q, want the 4th", got)
	}
}

func TestModel_Update_BatchDoneMsg(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	m, cmd := update(t, m, BatchDoneMsg{})

	if !m.done {
		t.Error("model should be done after BatchDoneMsg")
	}
	if cmd == nil {
		t.Error("BatchDoneMsg should produce a quit Cmd")
	}
}

func TestModel_Update_BatchErrorMsg(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	m, cmd := update(t, m, BatchErrorMsg{Err: errors.New("no recipes")})

	if !m.done {
		t.Error("model should be done after BatchErrorMsg")
	}
	if m.err == nil || m.err.Error() != "no recipes" {
		t.Errorf("err = %v, want 'no recipes'", m.err)
	}
	if cmd == nil {
		t.Error("BatchErrorMsg should produce a quit Cmd")
	}
}

func TestModel_View_Indicators(t *testing.T) {
	m := NewModel([]string{"hot_tea", "black_tea", "green_tea", "mocha"})
	m.orders[0].Status = StatusPrepared
	m.orders[0].Outlet = 2
	m.orders[1].Status = StatusInsufficient
	m.orders[1].Ingredient = "hot_water"
	m.orders[2].Status = StatusUnavailable
	m.orders[2].Ingredient = "green_mixture"
	m.orders[3].Status = StatusUnknownBeverage

	view := m.View()

	for _, want := range []string{
		"✓", "✗", "outlet 2",
		"hot_water insufficient",
		"green_mixture unavailable",
		"unknown beverage",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q, got:\n%s", want, view)
		}
	}
}

func TestModel_View_QueuedAndCancelled(t *testing.T) {
	m := NewModel([]string{"hot_tea", "black_tea"})
	m.orders[1].Status = StatusCancelled

	view := m.View()

	if !strings.Contains(view, "○") {
		t.Errorf("queued order should show ○, got:\n%s", view)
	}
	if !strings.Contains(view, "cancelled") {
		t.Errorf("cancelled order should say so, got:\n%s", view)
	}
}

func TestModel_View_Notices(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	m.notices = []NoticeMsg{
		{Text: "hot_water refilled by 100"},
		{Text: "hot_water running low: 50 left", Warning: true},
	}

	view := m.View()

	if !strings.Contains(view, "hot_water refilled by 100") {
		t.Errorf("view should list notices, got:\n%s", view)
	}
	if !strings.Contains(view, "! hot_water running low") {
		t.Errorf("warning notice should be flagged, got:\n%s", view)
	}
}

func TestModel_View_Footer(t *testing.T) {
	m := NewModel([]string{"hot_tea", "black_tea", "green_tea"})
	m.orders[0].Status = StatusPrepared
	m.orders[1].Status = StatusPrepared
	m.orders[2].Status = StatusUnavailable
	m.done = true
	m.elapsed = 1500 * time.Millisecond

	view := m.View()

	if !strings.Contains(view, "2/3 prepared in 1.5s") {
		t.Errorf("footer should summarize the batch, got:\n%s", view)
	}
}

func TestModel_View_FooterWithError(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	m.done = true
	m.err = errors.New("outlets busy")

	view := m.View()

	if !strings.Contains(view, "Error: outlets busy") {
		t.Errorf("footer should show the error, got:\n%s", view)
	}
	if strings.Contains(view, "prepared in") {
		t.Errorf("error footer should not show the summary, got:\n%s", view)
	}
}

func TestModel_View_FooterHiddenWhileRunning(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	m.orders[0].Status = StatusBrewing

	if view := m.View(); strings.Contains(view, "prepared in") {
		t.Errorf("footer should not show while running, got:\n%s", view)
	}
}

func TestModel_View_Duration(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	m.orders[0].Status = StatusPrepared
	m.orders[0].Duration = 2500 * time.Millisecond

	if view := m.View(); !strings.Contains(view, "2.5s") {
		t.Errorf("view should show order duration, got:\n%s", view)
	}
}

// --- Abort tests ---

func TestModel_Update_Key_WithCancel_SetsAborting(t *testing.T) {
	keys := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{name: "q", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, k := range keys {
		t.Run(k.name, func(t *testing.T) {
			cancelled := false
			m := NewModel([]string{"hot_tea"}, WithCancelFunc(func() { cancelled = true }))

			m, cmd := update(t, m, k.msg)

			if !m.aborting {
				t.Error("first press with cancelFunc should set aborting")
			}
			if m.done {
				t.Error("first press with cancelFunc should not set done")
			}
			if !cancelled {
				t.Error("first press should call cancelFunc")
			}
			if cmd != nil {
				t.Error("first press should not produce quit Cmd")
			}
		})
	}
}

func TestModel_Update_Key_DoublePress_ForcesQuit(t *testing.T) {
	calls := 0
	m := NewModel([]string{"hot_tea"}, WithCancelFunc(func() { calls++ }))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !m.done {
		t.Error("double-press should set done")
	}
	if cmd == nil {
		t.Error("double-press should produce quit Cmd")
	}
	if calls != 1 {
		t.Errorf("cancelFunc called %d times, want 1", calls)
	}
}

func TestModel_Update_Key_WithoutCancel_ImmediateQuit(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !m.done {
		t.Error("q without cancelFunc should set done")
	}
	if cmd == nil {
		t.Error("q without cancelFunc should produce quit Cmd")
	}
}

func TestModel_Update_Key_WhenDone_Ignored(t *testing.T) {
	m := NewModel([]string{"hot_tea"}, WithCancelFunc(func() {}))
	m.done = true

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if m.aborting {
		t.Error("pressing q when done should not set aborting")
	}
	if cmd != nil {
		t.Error("pressing q when done should not produce cmd")
	}
}

func TestModel_View_AbortingState(t *testing.T) {
	m := NewModel([]string{"hot_tea"})
	m.aborting = true
	m.orders[0].Status = StatusBrewing

	if view := m.View(); !strings.Contains(view, "Cancelling queued orders") {
		t.Errorf("view should show cancelling message, got:\n%s", view)
	}
}

func TestModel_Update_BatchEnd_ClearsAborting(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{name: "done", msg: BatchDoneMsg{}},
		{name: "error", msg: BatchErrorMsg{Err: context.Canceled}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel([]string{"hot_tea"}, WithCancelFunc(func() {}))
			m.aborting = true

			m, cmd := update(t, m, tt.msg)

			if !m.done {
				t.Error("batch end should set done even when aborting")
			}
			if m.aborting {
				t.Error("batch end should clear aborting")
			}
			if cmd == nil {
				t.Error("batch end should produce quit Cmd")
			}
			if strings.Contains(m.View(), "Cancelling") {
				t.Error("view should not show cancelling when done")
			}
		})
	}
}

// TestModel_Teatest_FullBatch verifies the model processes a batch end to end via teatest.
func TestModel_Teatest_FullBatch(t *testing.T) {
	beverages := []string{"hot_tea", "hot_coffee", "black_tea", "green_tea"}
	m := NewModel(beverages)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	for i, name := range beverages {
		tm.Send(OrderUpdateMsg{Index: i, Beverage: name, Status: StatusBrewing, Outlet: i + 1})
	}
	for i, name := range beverages[:3] {
		tm.Send(OrderUpdateMsg{Index: i, Beverage: name, Status: StatusPrepared, Outlet: i + 1})
	}
	tm.Send(OrderUpdateMsg{Index: 3, Beverage: "green_tea", Status: StatusUnavailable, Outlet: 4, Ingredient: "green_mixture"})
	tm.Send(NoticeMsg{Text: "hot_water running low", Warning: true})
	tm.Send(BatchDoneMsg{})

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	for i, name := range beverages[:3] {
		if final.orders[i].Status != StatusPrepared {
			t.Errorf("%s status = %q, want %q", name, final.orders[i].Status, StatusPrepared)
		}
	}
	if final.orders[3].Ingredient != "green_mixture" {
		t.Errorf("green_tea ingredient = %q, want green_mixture", final.orders[3].Ingredient)
	}
	if final.prepared() != 3 {
		t.Errorf("prepared = %d, want 3", final.prepared())
	}
	if len(final.notices) != 1 {
		t.Errorf("notices = %d, want 1", len(final.notices))
	}
	if !final.done {
		t.Error("final model should be done")
	}
}

func TestModel_Update_WindowSizeMsg(t *testing.T) {
	m := NewModel([]string{"hot_tea"})

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.help.Width != 120 {
		t.Errorf("help width = %d, want 120", m.help.Width)
	}
}

func TestModel_View_HelpBar(t *testing.T) {
	m := NewModel([]string{"hot_tea"}, WithCancelFunc(func() {}))

	if view := m.View(); !strings.Contains(view, "cancel queued") {
		t.Errorf("running view should show the cancel binding, got:\n%s", view)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if view := m.View(); !strings.Contains(view, "force quit") {
		t.Errorf("aborting view should show the force quit binding, got:\n%s", view)
	}

	m, _ = update(t, m, BatchDoneMsg{})
	if view := m.View(); strings.Contains(view, "force quit") || strings.Contains(view, "cancel queued") {
		t.Errorf("finished view should hide the help bar, got:\n%s", view)
	}
}

func TestKeyMaps(t *testing.T) {
	for name, km := range map[string]batchKeys{"batch": BatchKeyMap(), "aborting": AbortingKeyMap()} {
		t.Run(name, func(t *testing.T) {
			if got := len(km.ShortHelp()); got != 1 {
				t.Errorf("ShortHelp() = %d bindings, want 1", got)
			}
			if got := len(km.FullHelp()); got != 1 {
				t.Errorf("FullHelp() = %d groups, want 1", got)
			}
			if keys := km.Quit.Keys(); strings.Join(keys, ",") != "q,ctrl+c" {
				t.Errorf("Quit keys = %v, want q and ctrl+c", keys)
			}
		})
	}
}

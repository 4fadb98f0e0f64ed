package tui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// --- isTTY ---

func TestIsTTY_NonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	if isTTY(&buf) {
		t.Error("non-*os.File writer should not be a TTY")
	}
}

func TestIsTTY_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if isTTY(f) {
		t.Error("regular file should not be a TTY")
	}
}

// --- Bridge ---

func TestBridge_OrderDeliversUpdate(t *testing.T) {
	b := NewBridge()

	go b.Order(OrderUpdateMsg{Index: 2, Beverage: "hot_tea", Status: StatusBrewing, Outlet: 1})

	got := <-b.Events()
	ou, ok := got.(OrderUpdateMsg)
	if !ok {
		t.Fatalf("expected OrderUpdateMsg, got %T", got)
	}
	if ou.Index != 2 || ou.Beverage != "hot_tea" {
		t.Errorf("update = %+v, want index 2 hot_tea", ou)
	}
}

func TestBridge_NoticeDeliversNotice(t *testing.T) {
	b := NewBridge()

	go b.Notice(NoticeMsg{Text: "hot_milk running low", Warning: true})

	got := <-b.Events()
	n, ok := got.(NoticeMsg)
	if !ok {
		t.Fatalf("expected NoticeMsg, got %T", got)
	}
	if !n.Warning {
		t.Error("warning flag should survive the bridge")
	}
}

func TestBridge_DoneSendsBatchDoneAndCloses(t *testing.T) {
	b := NewBridge()

	go b.Done()

	got := <-b.Events()
	if _, ok := got.(BatchDoneMsg); !ok {
		t.Fatalf("expected BatchDoneMsg, got %T", got)
	}

	_, open := <-b.Events()
	if open {
		t.Error("channel should be closed after Done")
	}
}

func TestBridge_ErrorSendsBatchErrorAndCloses(t *testing.T) {
	b := NewBridge()

	go b.Error(errors.New("no recipes"))

	got := <-b.Events()
	be, ok := got.(BatchErrorMsg)
	if !ok {
		t.Fatalf("expected BatchErrorMsg, got %T", got)
	}
	if be.Err.Error() != "no recipes" {
		t.Errorf("error = %q, want %q", be.Err, "no recipes")
	}

	_, open := <-b.Events()
	if open {
		t.Error("channel should be closed after Error")
	}
}

func TestBridge_MultipleEvents(t *testing.T) {
	b := NewBridge()

	go func() {
		b.Order(OrderUpdateMsg{Index: 0, Beverage: "hot_tea", Status: StatusBrewing, Outlet: 1})
		b.Notice(NoticeMsg{Text: "hot_water running low"})
		b.Order(OrderUpdateMsg{Index: 0, Beverage: "hot_tea", Status: StatusPrepared, Outlet: 1})
		b.Done()
	}()

	var events []DisplayEvent
	for ev := range b.Events() {
		events = append(events, ev)
	}

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if _, ok := events[3].(BatchDoneMsg); !ok {
		t.Errorf("last event should be BatchDoneMsg, got %T", events[3])
	}
}

// --- PlainDisplay ---

func TestPlainDisplay_RendersOrders(t *testing.T) {
	tests := []struct {
		name string
		msg  OrderUpdateMsg
		want string
	}{
		{
			name: "brewing",
			msg:  OrderUpdateMsg{Beverage: "hot_tea", Status: StatusBrewing, Outlet: 2},
			want: "[outlet 2] hot_tea brewing",
		},
		{
			name: "unavailable",
			msg:  OrderUpdateMsg{Beverage: "green_tea", Status: StatusUnavailable, Outlet: 4, Ingredient: "green_mixture"},
			want: "[outlet 4] green_tea unavailable: green_mixture",
		},
		{
			name: "cancelled before an outlet",
			msg:  OrderUpdateMsg{Beverage: "black_tea", Status: StatusCancelled},
			want: "[queued] black_tea cancelled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			d := &PlainDisplay{w: &buf}

			ch := make(chan DisplayEvent, 2)
			ch <- tt.msg
			ch <- BatchDoneMsg{}
			close(ch)

			if err := d.Run(context.Background(), ch); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if out := buf.String(); !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want substring %q", out, tt.want)
			}
		})
	}
}

func TestPlainDisplay_RendersNotices(t *testing.T) {
	var buf bytes.Buffer
	d := &PlainDisplay{w: &buf}

	ch := make(chan DisplayEvent, 2)
	ch <- NoticeMsg{Text: "hot_water refilled by 100"}
	ch <- NoticeMsg{Text: "hot_milk running low", Warning: true}
	close(ch)

	if err := d.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "] hot_water refilled by 100") {
		t.Errorf("output should show plain notice, got:\n%s", out)
	}
	if !strings.Contains(out, "] ! hot_milk running low") {
		t.Errorf("output should flag warnings, got:\n%s", out)
	}
}

func TestPlainDisplay_HandlesContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	d := &PlainDisplay{w: &buf}
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan DisplayEvent) // Unbuffered, will block.

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, ch)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestPlainDisplay_ReturnsErrorFromBatchError(t *testing.T) {
	var buf bytes.Buffer
	d := &PlainDisplay{w: &buf}

	ch := make(chan DisplayEvent, 1)
	ch <- BatchErrorMsg{Err: errors.New("outlets jammed")}
	close(ch)

	err := d.Run(context.Background(), ch)
	if err == nil || !strings.Contains(err.Error(), "outlets jammed") {
		t.Errorf("expected batch error, got %v", err)
	}
}

// --- NewDisplay factory ---

func TestNewDisplay_ForcePlainReturnsPlainDisplay(t *testing.T) {
	d := NewDisplay(DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: true,
		Beverages:  []string{"hot_tea"},
	})

	if _, ok := d.(*PlainDisplay); !ok {
		t.Errorf("ForcePlain should return *PlainDisplay, got %T", d)
	}
}

func TestNewDisplay_NonTTYReturnsPlainDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(DisplayOptions{
		Writer:    &buf,
		Beverages: []string{"hot_tea"},
	})

	if _, ok := d.(*PlainDisplay); !ok {
		t.Errorf("non-TTY writer should return *PlainDisplay, got %T", d)
	}
}

func TestNewDisplay_DefaultsWriterToStdout(t *testing.T) {
	d := NewDisplay(DisplayOptions{
		ForcePlain: true,
		Beverages:  []string{"hot_tea"},
	})

	pd, ok := d.(*PlainDisplay)
	if !ok {
		t.Fatalf("expected *PlainDisplay, got %T", d)
	}
	if pd.w != os.Stdout {
		t.Error("default Writer should be os.Stdout")
	}
}

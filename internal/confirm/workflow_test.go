package confirm

import (
	"errors"
	"testing"
	"time"

	"copy-trader/internal/signal"
)

func makeIntent(ts time.Time) *signal.Intent {
	return &signal.Intent{
		Symbol:          "BTC",
		Side:            signal.SideLong,
		OrderKind:       signal.OrderLimit,
		Entries:         []float64{64000},
		Leverage:        5,
		SourceTimestamp: ts,
	}
}

func TestSubmit_AutoModeConfirmsImmediately(t *testing.T) {
	w := NewWorkflow(true, time.Minute, nil)

	p, confirmed, err := w.Submit(makeIntent(time.Now()))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !confirmed {
		t.Fatalf("auto mode should confirm immediately")
	}
	if p.State != StateConfirmed {
		t.Errorf("state: got %s want %s", p.State, StateConfirmed)
	}
	if len(w.Awaiting()) != 0 {
		t.Errorf("auto-confirmed intent should not be pending")
	}
}

func TestSubmit_ManualModeAwaitsConfirmation(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)

	p, confirmed, err := w.Submit(makeIntent(time.Now()))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if confirmed {
		t.Fatalf("manual mode must not auto-confirm")
	}
	if p.State != StateAwaiting {
		t.Errorf("state: got %s want %s", p.State, StateAwaiting)
	}
	if len(w.Awaiting()) != 1 {
		t.Errorf("expected 1 pending intent, got %d", len(w.Awaiting()))
	}
}

func TestResolve_ApproveThenDuplicateApproval(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)
	p, _, err := w.Submit(makeIntent(time.Now()))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	resolved, err := w.Resolve(p.ID, true)
	if err != nil {
		t.Fatalf("first approval returned error: %v", err)
	}
	if resolved.State != StateConfirmed {
		t.Errorf("state: got %s want %s", resolved.State, StateConfirmed)
	}

	// 传输层重复投递同一审批事件：不得再次放行
	if _, err := w.Resolve(p.ID, true); err == nil {
		t.Fatalf("duplicate approval must not succeed")
	}
}

func TestResolve_Reject(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)
	p, _, _ := w.Submit(makeIntent(time.Now()))

	resolved, err := w.Resolve(p.ID, false)
	if err != nil {
		t.Fatalf("reject returned error: %v", err)
	}
	if resolved.State != StateIgnored {
		t.Errorf("state: got %s want %s", resolved.State, StateIgnored)
	}
}

func TestResolve_UnknownIntent(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)
	if _, err := w.Resolve("missing", true); !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("expected ErrUnknownIntent, got %v", err)
	}
}

func TestSubmit_DuplicateSignalBlocked(t *testing.T) {
	w := NewWorkflow(true, time.Minute, nil)
	ts := time.Now()

	if _, _, err := w.Submit(makeIntent(ts)); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if _, _, err := w.Submit(makeIntent(ts)); !errors.Is(err, ErrDuplicateSignal) {
		t.Fatalf("expected ErrDuplicateSignal, got %v", err)
	}

	// 时间戳不同即视为新信号
	if _, _, err := w.Submit(makeIntent(ts.Add(time.Second))); err != nil {
		t.Errorf("distinct signal rejected: %v", err)
	}
}

func TestExpire_SweepsStalePending(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)
	p, _, _ := w.Submit(makeIntent(time.Now()))

	expired := w.Expire(time.Now().Add(2 * time.Minute))
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired intent, got %d", len(expired))
	}
	if expired[0].State != StateExpired {
		t.Errorf("state: got %s want %s", expired[0].State, StateExpired)
	}

	// 过期后的审批不再生效
	if _, err := w.Resolve(p.ID, true); !errors.Is(err, ErrUnknownIntent) {
		t.Errorf("expected ErrUnknownIntent after expiry, got %v", err)
	}
}

func TestToggleAuto(t *testing.T) {
	w := NewWorkflow(false, time.Minute, nil)
	if w.AutoExecute() {
		t.Fatalf("expected auto=false initially")
	}
	if !w.ToggleAuto() || !w.AutoExecute() {
		t.Fatalf("expected auto=true after toggle")
	}
}

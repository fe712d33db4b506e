package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestClosedAllowsUntilThreshold(t *testing.T) {
	b := New(3, 50*time.Millisecond, nil)
	failing := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return failing }); err != failing {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}
	if b.State() != Closed {
		t.Fatalf("expected CLOSED before threshold, got %s", b.State())
	}
	if err := b.Execute(func() error { return failing }); err != failing {
		t.Fatalf("expected underlying error on 3rd failure, got %v", err)
	}
	if b.State() != Open {
		t.Fatalf("expected OPEN after 3 consecutive failures, got %s", b.State())
	}
}

func TestOpenRejectsFastThenHalfOpens(t *testing.T) {
	b := New(1, 20*time.Millisecond, nil)
	_ = b.Execute(func() error { return errors.New("x") })
	if b.State() != Open {
		t.Fatalf("expected OPEN, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != ErrOpen {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("expected HALF_OPEN after recovery timeout, got %s", b.State())
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New(1, 10*time.Millisecond, nil)
	_ = b.Execute(func() error { return errors.New("x") })
	time.Sleep(15 * time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected CLOSED after half-open success, got %s", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond, nil)
	_ = b.Execute(func() error { return errors.New("x") })
	time.Sleep(15 * time.Millisecond)
	_ = b.Execute(func() error { return errors.New("y") })
	if b.State() != Open {
		t.Fatalf("expected OPEN after half-open failure, got %s", b.State())
	}
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []State
	b := New(1, 10*time.Millisecond, func(s State) { transitions = append(transitions, s) })
	_ = b.Execute(func() error { return errors.New("x") })
	if len(transitions) != 1 || transitions[0] != Open {
		t.Fatalf("expected one transition to OPEN, got %v", transitions)
	}
}

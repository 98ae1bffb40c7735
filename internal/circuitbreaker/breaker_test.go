package circuitbreaker

import (
	"sync"
	"testing"
	"time"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(3, time.Minute)
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatal("closed breaker should allow")
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected closed before threshold, got %s", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("open breaker should not allow")
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New(1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("freshly opened breaker should not allow")
	}

	// Cooldown elapses: one probe is admitted, a second is not.
	current = current.Add(time.Minute + time.Second)
	if !b.Allow() {
		t.Fatal("expected probe after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("only one probe may be in flight")
	}
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	b := New(1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(2 * time.Minute)
	b.Allow() // probe
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := New(1, time.Minute)
	current := time.Now()
	b.now = func() time.Time { return current }

	b.RecordFailure()
	current = current.Add(2 * time.Minute)
	b.Allow() // probe
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_TransitionCallback(t *testing.T) {
	b := New(1, time.Minute)

	var mu sync.Mutex
	var transitions [][2]State
	done := make(chan struct{}, 4)
	b.OnTransition(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, [2]State{from, to})
		mu.Unlock()
		done <- struct{}{}
	})

	b.RecordFailure()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected transition callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != [2]State{StateClosed, StateOpen} {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

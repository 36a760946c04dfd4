package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = c.now
	cb.lastStateTime = c.t
	return cb, c
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})
	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want errBoom", i, err)
		}
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state: got %v, want %v", got, StateOpen)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("got %v, want ErrCircuitBreakerOpen", err)
	}
	if called {
		t.Error("fn ran while breaker open")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state: got %v, want %v", got, StateClosed)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb, clk := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute})
	var transitions []string
	cb.OnStateChange(func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) })

	_ = cb.Execute(fail)
	clk.advance(time.Minute)
	if got := cb.GetState(); got != StateHalfOpen {
		t.Fatalf("state: got %v, want %v", got, StateHalfOpen)
	}
	_ = cb.Execute(succeed)
	if got := cb.GetState(); got != StateHalfOpen {
		t.Fatalf("state after one success: got %v, want %v", got, StateHalfOpen)
	}
	_ = cb.Execute(succeed)
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state: got %v, want %v", got, StateClosed)
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: got %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb, clk := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})
	_ = cb.Execute(fail)
	clk.advance(2 * time.Minute)
	_ = cb.Execute(fail)
	if got := cb.GetState(); got != StateOpen {
		t.Errorf("state: got %v, want %v", got, StateOpen)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	_ = cb.Execute(fail)
	cb.Reset()
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state: got %v, want %v", got, StateClosed)
	}
}

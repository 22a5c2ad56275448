package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultOk(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok result")
	}
	v, err := r.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("Unwrap = (%v, %v)", v, err)
	}
}

func TestResultErr(t *testing.T) {
	sentinel := errors.New("boom")
	r := Err[int](sentinel)
	if r.IsOk() || !r.IsErr() {
		t.Fatal("expected error result")
	}
	if _, err := r.Unwrap(); !errors.Is(err, sentinel) {
		t.Fatalf("Unwrap err = %v", err)
	}
	if got := r.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d, want 7", got)
	}
}

func TestResultErrf(t *testing.T) {
	r := Errf[string]("bad %s", "input")
	_, err := r.Unwrap()
	if err == nil || err.Error() != "bad input" {
		t.Fatalf("err = %v", err)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); !r.IsOk() {
		t.Error("expected ok")
	}
	if r := FromPair(0, errors.New("x")); !r.IsErr() {
		t.Error("expected err")
	}
}

func quickRetry(attempts int) RetryOpts {
	return RetryOpts{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
}

func TestRetryFirstTry(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), quickRetry(3), func(context.Context) Result[int] {
		calls++
		return Ok(1)
	})
	if !r.IsOk() || calls != 1 {
		t.Fatalf("calls = %d, ok = %v", calls, r.IsOk())
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), quickRetry(5), func(context.Context) Result[int] {
		calls++
		if calls < 3 {
			return Errf[int]("transient")
		}
		return Ok(calls)
	})
	v, err := r.Unwrap()
	if err != nil || v != 3 {
		t.Fatalf("Unwrap = (%d, %v), calls = %d", v, err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	sentinel := errors.New("permanent")
	calls := 0
	r := Retry(context.Background(), quickRetry(3), func(context.Context) Result[int] {
		calls++
		return Err[int](sentinel)
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if _, err := r.Unwrap(); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := Retry(ctx, RetryOpts{MaxAttempts: 10, InitialWait: time.Minute, MaxWait: time.Minute}, func(context.Context) Result[int] {
		calls++
		cancel()
		return Errf[int]("fail")
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

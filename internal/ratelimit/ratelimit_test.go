package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSpacesInvocations(t *testing.T) {
	const interval = 60 * time.Millisecond
	l := New(interval)

	var starts []time.Time
	fn := func(ctx context.Context) error {
		starts = append(starts, time.Now())
		return nil
	}
	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), fn); err != nil {
			t.Fatalf("Do #%d: %v", i, err)
		}
	}
	if len(starts) != 3 {
		t.Fatalf("got %d invocations, want 3", len(starts))
	}
	// The first call runs immediately; later ones wait out the cooldown.
	// Allow a little timer slack below the nominal spacing.
	const slack = 15 * time.Millisecond
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval-slack {
			t.Fatalf("gap between call %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestDoPropagatesError(t *testing.T) {
	l := New(time.Millisecond)
	boom := errors.New("ping failed")
	err := l.Do(context.Background(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestDoCancelableDuringCooldown(t *testing.T) {
	l := New(time.Hour)
	// Burn the initial token so the next call would wait an hour.
	if err := l.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("first Do: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	called := false
	err := l.Do(ctx, func(ctx context.Context) error { called = true; return nil })
	if err == nil {
		t.Fatal("expected error from canceled wait")
	}
	if called {
		t.Fatal("fn ran despite canceled wait")
	}
}

func TestWrap(t *testing.T) {
	l := New(time.Millisecond)
	calls := 0
	wrapped := l.Wrap(func(ctx context.Context) error { calls++; return nil })
	if err := wrapped(context.Background()); err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSafeGoExecutes(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGo task did not execute")
	}
}

func TestSafeGoRecoversFromPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGo task did not run to the panic")
	}
	// Give the deferred recovery a moment; the test passes if we don't crash
	time.Sleep(50 * time.Millisecond)
}

func TestSafeGoSwallowsErrors(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("dispatch failed")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGo task did not execute")
	}
}

func TestSafeGoTimeout(t *testing.T) {
	observed := make(chan error, 1)

	SafeGo(context.Background(), 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		observed <- ctx.Err()
		return nil
	})

	select {
	case err := <-observed:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGo task context was never canceled")
	}
}

func TestSafeGoNoError(t *testing.T) {
	var ran atomic.Bool
	done := make(chan struct{})

	SafeGoNoError(context.Background(), time.Second, "void task", func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGoNoError task did not execute")
	}
	if !ran.Load() {
		t.Error("Expected task to run")
	}
}

func TestDetachedSurvivesParentCancellation(t *testing.T) {
	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "kept"))

	detached := Detached(parent)
	cancel()

	if err := detached.Err(); err != nil {
		t.Errorf("Expected detached context to survive cancellation, got %v", err)
	}
	if detached.Value(key{}) != "kept" {
		t.Error("Expected detached context to keep parent values")
	}
	if _, ok := detached.Deadline(); ok {
		t.Error("Expected detached context to have no deadline")
	}
}

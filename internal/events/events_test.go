package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishDetachesCallerContext(t *testing.T) {
	bus := NewBus()
	errs := make(chan error, 1)
	bus.Subscribe(func(ctx context.Context, event Event) {
		errs <- ctx.Err()
	})

	// Simulate a request context that is already dead by the time the
	// handler goroutine runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, New(TypeCheckedIn, 1, CheckedInPayload{SessionID: 1}))

	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("handler context err = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})
	bus.Subscribe(func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Publish(context.Background(), New(TypeCheckedOut, 1, CheckedOutPayload{SessionID: 1}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("surviving handler did not run")
	}
}

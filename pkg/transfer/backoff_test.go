package transfer

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_GrowsAndResets(t *testing.T) {
	b := newBackoff(10*time.Millisecond, 40*time.Millisecond)

	ctx := context.Background()
	if err := b.Sleep(ctx); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if b.current != 20*time.Millisecond {
		t.Errorf("current = %v, want 20ms after one sleep", b.current)
	}

	for i := 0; i < 4; i++ {
		if err := b.Sleep(ctx); err != nil {
			t.Fatalf("Sleep: %v", err)
		}
	}
	if b.current != 40*time.Millisecond {
		t.Errorf("current = %v, want cap of 40ms", b.current)
	}

	b.Reset()
	if b.current != 10*time.Millisecond {
		t.Errorf("current = %v, want initial 10ms after Reset", b.current)
	}
}

func TestBackoff_CancelInterruptsSleep(t *testing.T) {
	b := newBackoff(10*time.Second, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := b.Sleep(ctx)
	if err == nil {
		t.Fatal("Sleep returned nil after cancel")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep took %v, cancellation should interrupt it", elapsed)
	}
}

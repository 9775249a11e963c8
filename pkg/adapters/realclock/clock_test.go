package realclock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleep(t *testing.T) {
	c := New()
	start := c.Now()
	if err := c.Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if elapsed := c.Now().Sub(start); elapsed < 10*time.Millisecond {
		t.Errorf("slept only %v", elapsed)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New().Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

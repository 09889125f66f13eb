package heartbeat

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartDisabled(t *testing.T) {
	hs := NewHeartbeatService("", false)
	if err := hs.Start(); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if hs.Running() {
		t.Fatal("disabled service should not run")
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	hs := NewHeartbeatService("not a cron", true)
	if err := hs.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestDefaultSchedule(t *testing.T) {
	hs := NewHeartbeatService("", true)
	if hs.Schedule() != DefaultSchedule {
		t.Fatalf("expected default schedule, got %q", hs.Schedule())
	}

	hs.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local) }
	next, err := hs.NextRun()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 2, 3, 0, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Fatalf("expected next run %v, got %v", want, next)
	}
}

func TestTrigger(t *testing.T) {
	hs := NewHeartbeatService("", true)
	if err := hs.Trigger(); err != nil {
		t.Fatalf("trigger without callback should be a no-op, got %v", err)
	}

	var calls int32
	hs.SetOnTick(func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("consolidation failed")
	})
	if err := hs.Trigger(); err == nil {
		t.Fatal("expected callback error from Trigger")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestLoopRunsCallbackAndStops(t *testing.T) {
	hs := NewHeartbeatService("* * * * *", true)
	fire := make(chan time.Time)
	hs.after = func(time.Duration) <-chan time.Time { return fire }

	ticked := make(chan struct{}, 4)
	hs.SetOnTick(func() error {
		ticked <- struct{}{}
		return nil
	})

	if err := hs.Start(); err != nil {
		t.Fatal(err)
	}
	if err := hs.Start(); err != nil {
		t.Fatalf("second Start should be a no-op, got %v", err)
	}

	fire <- time.Now()
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not run")
	}

	hs.Stop()
	hs.Stop()
	if hs.Running() {
		t.Fatal("expected service stopped")
	}
}

func TestRestartAfterStop(t *testing.T) {
	hs := NewHeartbeatService("0 3 * * *", true)
	if err := hs.Start(); err != nil {
		t.Fatal(err)
	}
	hs.Stop()
	if err := hs.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if !hs.Running() {
		t.Fatal("expected service running after restart")
	}
	hs.Stop()
}

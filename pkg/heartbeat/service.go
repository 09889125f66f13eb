// Package heartbeat runs a callback on a cron schedule, used for periodic
// memory consolidation.
package heartbeat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/picomind/pkg/logger"
)

// DefaultSchedule runs consolidation once a day at 03:00.
const DefaultSchedule = "0 3 * * *"

var ErrDisabled = errors.New("heartbeat service is disabled")

type HeartbeatService struct {
	schedule string
	enabled  bool
	onTick   func() error

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewHeartbeatService(schedule string, enabled bool) *HeartbeatService {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &HeartbeatService{
		schedule: schedule,
		enabled:  enabled,
		now:      time.Now,
		after:    time.After,
	}
}

func (hs *HeartbeatService) SetOnTick(fn func() error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.onTick = fn
}

// Schedule returns the cron expression in use.
func (hs *HeartbeatService) Schedule() string {
	return hs.schedule
}

// NextRun returns the next time the schedule fires after now.
func (hs *HeartbeatService) NextRun() (time.Time, error) {
	return gronx.NextTickAfter(hs.schedule, hs.now(), false)
}

func (hs *HeartbeatService) Start() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.running {
		return nil
	}
	if !hs.enabled {
		return ErrDisabled
	}
	if !gronx.New().IsValid(hs.schedule) {
		return fmt.Errorf("invalid heartbeat schedule %q", hs.schedule)
	}

	hs.running = true
	hs.stopChan = make(chan struct{})
	hs.done = make(chan struct{})
	go hs.runLoop(hs.stopChan, hs.done)

	logger.InfoCF("heartbeat", "Heartbeat service started", map[string]interface{}{
		"schedule": hs.schedule,
	})
	return nil
}

// Stop halts the loop and waits for an in-flight tick to finish. Safe to call repeatedly.
func (hs *HeartbeatService) Stop() {
	hs.mu.Lock()
	if !hs.running {
		hs.mu.Unlock()
		return
	}
	hs.running = false
	close(hs.stopChan)
	done := hs.done
	hs.mu.Unlock()

	<-done
	logger.InfoC("heartbeat", "Heartbeat service stopped")
}

// Running reports whether the loop is active.
func (hs *HeartbeatService) Running() bool {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.running
}

// Trigger runs the callback now, outside the schedule.
func (hs *HeartbeatService) Trigger() error {
	hs.mu.RLock()
	onTick := hs.onTick
	hs.mu.RUnlock()

	if onTick == nil {
		return nil
	}
	return onTick()
}

func (hs *HeartbeatService) runLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		now := hs.now()
		next, err := gronx.NextTickAfter(hs.schedule, now, false)
		if err != nil {
			logger.ErrorCF("heartbeat", "Cannot compute next tick, stopping", map[string]interface{}{
				"schedule": hs.schedule,
				"error":    err.Error(),
			})
			return
		}

		select {
		case <-stop:
			return
		case <-hs.after(next.Sub(now)):
			hs.tick()
		}
	}
}

func (hs *HeartbeatService) tick() {
	logger.DebugCF("heartbeat", "Heartbeat tick", nil)
	if err := hs.Trigger(); err != nil {
		logger.ErrorCF("heartbeat", "Heartbeat callback error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualSchedulerTickAndCancel(t *testing.T) {
	sched := NewManualScheduler()

	var a, b int
	cancelA := sched.Every(time.Second, func() { a++ })
	sched.Every(time.Second, func() { b++ })
	assert.Equal(t, 2, sched.Active())

	sched.Tick()
	sched.Tick()
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)

	cancelA()
	assert.Equal(t, 1, sched.Active())
	sched.Tick()
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)

	// Cancel is idempotent.
	cancelA()
	assert.Equal(t, 1, sched.Active())
}

func TestTickerSchedulerFiresAndStops(t *testing.T) {
	fired := make(chan struct{}, 1)
	cancel := TickerScheduler{}.Every(time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}

	// Cancel blocks until the goroutine exits; calling it twice is safe.
	cancel()
	cancel()
}

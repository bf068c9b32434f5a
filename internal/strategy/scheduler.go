package strategy

import (
	"sync"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// Scheduler runs a task repeatedly until its cancel func is called.
// The bots take it as a dependency so tests can drive ticks by hand
// instead of waiting on wall-clock timers.
type Scheduler interface {
	Every(interval time.Duration, task func()) domain.CancelFunc
}

// TickerScheduler runs tasks on real time.Ticker goroutines.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

// Every starts a goroutine firing task at the given interval.
func (TickerScheduler) Every(interval time.Duration, task func()) domain.CancelFunc {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				task()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
			<-done
		})
	}
}

// ManualScheduler collects tasks and fires them only when Tick is
// called. It ignores intervals entirely, which makes bot behavior
// deterministic under test.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]func()
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]func())}
}

// Every registers task; it will run on every Tick until cancelled.
func (m *ManualScheduler) Every(_ time.Duration, task func()) domain.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.tasks[id] = task

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tasks, id)
	}
}

// Tick runs every registered task once, in registration order not
// guaranteed.
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	tasks := make([]func(), 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t()
	}
}

// Active reports how many tasks are currently scheduled.
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

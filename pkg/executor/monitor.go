package executor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/metrics"
)

// Monitor polls registered task handlers at a fixed granularity, advancing
// their state machines. Future completion callbacks call Signal to trigger an
// immediate poll instead of waiting out the interval.
type Monitor struct {
	interval time.Duration

	mu       sync.Mutex
	handlers []*TaskHandler

	signalCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewMonitor creates a monitor polling at the given interval. A zero or
// negative interval defaults to one second.
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		interval: interval,
		signalCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("monitor"),
	}
}

// Register adds a handler to the polling set.
func (m *Monitor) Register(h *TaskHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Signal triggers an immediate poll. Safe to call from any goroutine;
// coalesces with a pending signal.
func (m *Monitor) Signal() {
	select {
	case m.signalCh <- struct{}{}:
	default:
	}
}

// Start begins the polling loop.
func (m *Monitor) Start() {
	go m.run()
}

// Stop stops the polling loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.poll()
		case <-m.signalCh:
			m.poll()
		case <-m.stopCh:
			return
		}
	}
}

// poll advances every registered handler and drops the completed ones.
func (m *Monitor) poll() {
	m.mu.Lock()
	handlers := make([]*TaskHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	var completed []*TaskHandler
	for _, h := range handlers {
		h.CheckIfRunning()
		if h.CheckIfCompleted() {
			completed = append(completed, h)
		}
	}
	if len(completed) > 0 {
		m.remove(completed)
	}
	metrics.MonitorCycles.Inc()
}

func (m *Monitor) remove(done []*TaskHandler) {
	gone := make(map[*TaskHandler]bool, len(done))
	for _, h := range done {
		gone[h] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.handlers[:0]
	for _, h := range m.handlers {
		if !gone[h] {
			kept = append(kept, h)
		}
	}
	m.handlers = kept
}

package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/linanwx/chatball/logger"
)

const defaultProbeTimeout = 5 * time.Second

// Monitor polls the backend on a fixed schedule and keeps the latest status.
type Monitor struct {
	cron     *robfigcron.Cron
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	onChange func(Status)

	mu      sync.Mutex
	last    Status
	checked bool
	running atomic.Bool
}

// NewMonitor creates a monitor. onChange, if set, is called after every
// probe whose result differs from the previous one, including the first. An
// interval of zero or less disables polling; Start then probes only once.
func NewMonitor(p Prober, interval time.Duration, onChange func(Status)) *Monitor {
	return &Monitor{
		cron:     robfigcron.New(),
		prober:   p,
		interval: interval,
		timeout:  defaultProbeTimeout,
		onChange: onChange,
	}
}

// Start schedules polling and runs the first probe in the background.
func (m *Monitor) Start() error {
	if m.interval > 0 {
		spec := fmt.Sprintf("@every %s", m.interval)
		if _, err := m.cron.AddFunc(spec, func() { m.Check() }); err != nil {
			return fmt.Errorf("schedule health check: %w", err)
		}
		m.cron.Start()
	}
	go m.Check()
	return nil
}

// Stop ends polling and waits for a running scheduled probe to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

// Check probes the backend now. Overlapping calls are skipped and return
// the last known status.
func (m *Monitor) Check() Status {
	if !m.running.CompareAndSwap(false, true) {
		return m.Status()
	}
	defer m.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	st := Probe(ctx, m.prober)
	cancel()

	m.mu.Lock()
	changed := !m.checked || !st.same(m.last)
	m.last = st
	m.checked = true
	m.mu.Unlock()

	if changed {
		logger.Info("backend health changed",
			"reachable", st.Reachable,
			"ok", st.OK,
			"provider", st.Provider,
			"model", st.Model,
			"err", st.Err,
		)
		if m.onChange != nil {
			m.onChange(st)
		}
	}
	return st
}

// Status returns the latest probe result. It is the zero Status until the
// first probe completes.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

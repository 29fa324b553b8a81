// Package monitor periodically probes the backing services and keeps the
// latest result for the health endpoint and the buffer processor.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check probes one dependency. A nil error means reachable.
type Check func(ctx context.Context) error

type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]Check
	critical map[string]bool
	status   Status

	interval time.Duration
	timeout  time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   make(map[string]Check),
		critical: make(map[string]bool),
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Register adds a named check. Critical checks decide IsOnline.
func (m *Monitor) Register(name string, check Check, critical bool) {
	if check == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
	m.critical[name] = critical
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every critical component passed its last check.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status.LastCheck.IsZero() {
		return false
	}
	for name, critical := range m.critical {
		if critical && !m.status.Components[name].OK {
			return false
		}
	}
	return true
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.clone()
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and publishes the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	previous := m.status.Components
	m.mu.RUnlock()
	sort.Strings(names)

	status := Status{
		Components: make(map[string]Component, len(names)),
		LastCheck:  time.Now().UTC(),
	}
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := checks[name](checkCtx)
		cancel()

		component := Component{OK: err == nil}
		if err != nil {
			component.Error = err.Error()
		}
		if was, seen := previous[name]; seen && was.OK != component.OK {
			m.logger.Warn("component status changed", zap.String("component", name), zap.Bool("ok", component.OK), zap.Error(err))
		}
		status.Components[name] = component
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status.clone()
}

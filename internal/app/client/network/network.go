package network

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Status - состояние сети. Онлайн требует и интерфейса, и доступности сервера.
type Status struct {
	Connected bool `json:"connected"`
	Reachable bool `json:"reachable"`
}

func (s Status) Online() bool {
	return s.Connected && s.Reachable
}

// Prober определяет текущее состояние сети.
type Prober interface {
	Probe(ctx context.Context) Status
}

// HealthChecker проверяет доступность сервера.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HTTPProber проверяет наличие сетевого интерфейса и отвечает ли сервер.
type HTTPProber struct {
	checker    HealthChecker
	timeout    time.Duration
	interfaces func() bool
}

func NewHTTPProber(checker HealthChecker, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		checker:    checker,
		timeout:    timeout,
		interfaces: hasActiveInterface,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) Status {
	if !p.interfaces() {
		return Status{}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return Status{
		Connected: true,
		Reachable: p.checker.HealthCheck(ctx) == nil,
	}
}

func hasActiveInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addrs, err := iface.Addrs(); err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Monitor хранит последнее известное состояние сети и оповещает подписчиков.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	current   Status
	known     bool
	listeners map[int]func(Status)
	nextID    int
}

// NewMonitor создает монитор. До первой проверки состояние - офлайн.
func NewMonitor(prober Prober, interval time.Duration, log *slog.Logger) *Monitor {
	return &Monitor{
		prober:    prober,
		interval:  interval,
		log:       log.With("component", "network_monitor"),
		listeners: make(map[int]func(Status)),
	}
}

// GetCurrent возвращает последнее известное состояние.
func (m *Monitor) GetCurrent() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe регистрирует обработчик изменений и возвращает функцию отписки.
func (m *Monitor) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Set применяет новое состояние. Подписчики вызываются только при изменении.
func (m *Monitor) Set(s Status) {
	m.mu.Lock()
	if m.known && m.current == s {
		m.mu.Unlock()
		return
	}
	prev := m.current
	m.current = s
	m.known = true
	listeners := make([]func(Status), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.log.Info("Состояние сети изменилось",
		"online", s.Online(),
		"connected", s.Connected,
		"reachable", s.Reachable,
		"was_online", prev.Online(),
	)

	for _, fn := range listeners {
		fn(s)
	}
}

// Refresh выполняет проверку и применяет результат.
func (m *Monitor) Refresh(ctx context.Context) Status {
	s := m.prober.Probe(ctx)
	m.Set(s)
	return s
}

// Run периодически проверяет сеть, пока не отменен контекст.
func (m *Monitor) Run(ctx context.Context) {
	m.Refresh(ctx)
	if m.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

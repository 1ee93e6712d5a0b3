package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type stubProber struct {
	mu     sync.Mutex
	status Status
}

func (p *stubProber) Probe(context.Context) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *stubProber) set(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

type stubChecker struct {
	err error
}

func (c stubChecker) HealthCheck(context.Context) error { return c.err }

func TestStatus_Online(t *testing.T) {
	assert.True(t, Status{Connected: true, Reachable: true}.Online())
	assert.False(t, Status{Connected: true}.Online())
	assert.False(t, Status{Reachable: true}.Online())
}

func TestMonitor_NotifiesOnChangeOnly(t *testing.T) {
	m := NewMonitor(&stubProber{}, 0, slog.Default())

	var got []Status
	unsubscribe := m.Subscribe(func(s Status) { got = append(got, s) })

	online := Status{Connected: true, Reachable: true}
	m.Set(online)
	m.Set(online)
	m.Set(Status{Connected: true})

	assert.Equal(t, []Status{online, {Connected: true}}, got)
	assert.Equal(t, Status{Connected: true}, m.GetCurrent())

	unsubscribe()
	unsubscribe()
	m.Set(online)
	assert.Len(t, got, 2)
}

func TestMonitor_Run(t *testing.T) {
	prober := &stubProber{}
	m := NewMonitor(prober, 5*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	prober.set(Status{Connected: true, Reachable: true})

	assert.Eventually(t, func() bool { return m.GetCurrent().Online() }, time.Second, 5*time.Millisecond)
}

func TestHTTPProber(t *testing.T) {
	up := &HTTPProber{checker: stubChecker{}, timeout: time.Second, interfaces: func() bool { return true }}
	assert.Equal(t, Status{Connected: true, Reachable: true}, up.Probe(context.Background()))

	unreachable := &HTTPProber{checker: stubChecker{err: errors.New("refused")}, timeout: time.Second, interfaces: func() bool { return true }}
	assert.Equal(t, Status{Connected: true}, unreachable.Probe(context.Background()))

	noLink := &HTTPProber{checker: stubChecker{}, timeout: time.Second, interfaces: func() bool { return false }}
	assert.False(t, noLink.Probe(context.Background()).Online())
}

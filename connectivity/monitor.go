// Package connectivity tracks whether the remote store is reachable and
// notifies subscribers on transitions, replacing a browser's online/offline
// events with an active reachability probe.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
)

// Prober is the reachability check, normally the remote store client
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor maintains an online/offline flag from periodic probes
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration

	online atomic.Bool

	mu          sync.Mutex
	subscribers []func(online bool)

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor probing reachability every interval
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  5 * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Online returns the current reachability flag without touching the network
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe registers fn to be called on every online/offline transition.
// Callbacks run on the monitor's goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Start performs the initial probe and begins the periodic probe loop
func (m *Monitor) Start() {
	m.CheckNow()
	log.Infof("Connectivity monitor started, online=%v, probing every %v", m.Online(), m.interval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CheckNow()
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop stops the probe loop
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

// CheckNow probes reachability once and fires subscribers if the flag
// flipped
func (m *Monitor) CheckNow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	online := m.prober.Health(ctx) == nil
	previous := m.online.Swap(online)
	if online != previous {
		if online {
			log.Info("Connectivity restored")
		} else {
			log.Warn("Connectivity lost")
		}
		m.notify(online)
	}
	return online
}

func (m *Monitor) notify(online bool) {
	m.mu.Lock()
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(online)
	}
}

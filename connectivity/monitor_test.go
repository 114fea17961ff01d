package connectivity

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type scriptedProber struct {
	reachable bool
}

func (p *scriptedProber) Health(ctx context.Context) error {
	if p.reachable {
		return nil
	}
	return fmt.Errorf("connection refused")
}

func TestCheckNowTracksTransitions(t *testing.T) {
	prober := &scriptedProber{reachable: false}
	monitor := NewMonitor(prober, time.Minute)

	var transitions []bool
	monitor.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	if monitor.CheckNow() {
		t.Error("expected offline while prober fails")
	}
	if monitor.Online() {
		t.Error("Online() should report offline")
	}
	if len(transitions) != 0 {
		t.Errorf("offline at startup is not a transition, got %v", transitions)
	}

	prober.reachable = true
	if !monitor.CheckNow() {
		t.Error("expected online once prober succeeds")
	}
	// Repeated probes in the same state must not re-notify.
	monitor.CheckNow()
	monitor.CheckNow()

	prober.reachable = false
	monitor.CheckNow()

	expected := []bool{true, false}
	if len(transitions) != len(expected) {
		t.Fatalf("expected transitions %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Fatalf("expected transitions %v, got %v", expected, transitions)
		}
	}
}

func TestStartFiresInitialOnlineTransition(t *testing.T) {
	prober := &scriptedProber{reachable: true}
	monitor := NewMonitor(prober, time.Hour)

	fired := make(chan bool, 1)
	monitor.Subscribe(func(online bool) {
		fired <- online
	})

	monitor.Start()
	defer monitor.Stop()

	select {
	case online := <-fired:
		if !online {
			t.Error("expected initial transition to online")
		}
	default:
		t.Error("expected the startup probe to fire the online transition")
	}
}

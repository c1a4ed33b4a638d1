package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts wall time so cooldown behavior is testable without real sleeps
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns a Clock backed by real wall time
func SystemClock() Clock {
	return systemClock{}
}

// State describes what the gate is currently doing
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateCoolingDown State = "cooling_down"
)

// Gate serializes crawl execution and enforces a minimum gap between crawls.
// It is a semaphore of capacity one paired with a monotonic earliest-next-start
// timestamp: Acquire blocks until the gate is free and the previous crawl's
// cooldown has elapsed; Release arms the next cooldown.
type Gate struct {
	cooldown time.Duration
	clock    Clock
	sem      chan struct{}

	mu        sync.Mutex
	nextStart time.Time
	running   bool
}

// NewGate creates a gate enforcing the given cooldown between acquisitions
func NewGate(cooldown time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = SystemClock()
	}
	return &Gate{
		cooldown: cooldown,
		clock:    clock,
		sem:      make(chan struct{}, 1),
	}
}

// Acquire blocks until no crawl is in flight and the cooldown from the
// previous crawl has fully elapsed
func (g *Gate) Acquire() {
	g.sem <- struct{}{}

	for {
		g.mu.Lock()
		wait := g.nextStart.Sub(g.clock.Now())
		g.mu.Unlock()
		if wait <= 0 {
			break
		}
		g.clock.Sleep(wait)
	}

	g.mu.Lock()
	g.running = true
	g.mu.Unlock()
}

// Release arms the cooldown and frees the gate for the next waiter
func (g *Gate) Release() {
	g.mu.Lock()
	g.running = false
	g.nextStart = g.clock.Now().Add(g.cooldown)
	g.mu.Unlock()

	<-g.sem
}

// State reports whether the gate is idle, running a crawl, or cooling down
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return StateRunning
	}
	if g.clock.Now().Before(g.nextStart) {
		return StateCoolingDown
	}
	return StateIdle
}

// NextStart returns the earliest instant the next crawl may begin
func (g *Gate) NextStart() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextStart
}

// Cooldown returns the configured minimum gap between crawls
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

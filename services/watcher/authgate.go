package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type AuthDecision int

const (
	DecisionContinue AuthDecision = iota
	DecisionShutdown
)

func (d AuthDecision) String() string {
	if d == DecisionShutdown {
		return "shutdown"
	}
	return "continue"
}

type pendingDecision struct {
	done     chan struct{}
	decision AuthDecision
}

// AuthGate suspends the pipeline when a fetch reports an authorization
// failure and surfaces a single decision request to the operator.
//
// It moves between three states: idle (no failure outstanding),
// awaiting decision (one operator prompt in flight, concurrent
// failures wait on it instead of issuing their own), and shutdown
// (sticky: every later Resolve call short-circuits without asking).
// It never returns an error, callers halt their own loops on a
// shutdown decision.
type AuthGate struct {
	operator Operator
	wait     time.Duration
	fallback AuthDecision

	mu       sync.Mutex
	shutdown bool
	inflight *pendingDecision
}

func NewAuthGate(operator Operator, wait time.Duration, fallback AuthDecision) *AuthGate {
	return &AuthGate{
		operator: operator,
		wait:     wait,
		fallback: fallback,
	}
}

// Resolve blocks until the operator answers the outstanding prompt
// (issuing one if none is pending) or the bounded wait elapses, in
// which case the configured fallback applies.
func (g *AuthGate) Resolve(ctx context.Context) AuthDecision {
	g.mu.Lock()
	if g.shutdown {
		g.mu.Unlock()
		return DecisionShutdown
	}
	if g.inflight == nil {
		g.inflight = &pendingDecision{done: make(chan struct{})}
		go g.ask(g.inflight)
	}
	p := g.inflight
	g.mu.Unlock()

	select {
	case <-p.done:
		return p.decision
	case <-ctx.Done():
		// the run is being torn down, stop the caller's loop too
		return DecisionShutdown
	}
}

func (g *AuthGate) ask(p *pendingDecision) {
	decision := g.fallback

	if g.operator == nil {
		slog.Warn("authorization failure with no operator attached", "assuming", decision)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), g.wait)
		answer, err := g.operator.RequestAuthDecision(ctx)
		cancel()
		if err != nil {
			slog.Warn("operator did not answer authorization prompt", "assuming", decision, "err", err)
		} else {
			decision = answer
		}
	}

	g.mu.Lock()
	if decision == DecisionShutdown {
		g.shutdown = true
	}
	g.inflight = nil
	p.decision = decision
	g.mu.Unlock()
	close(p.done)
}

// ShuttingDown reports whether a shutdown decision has been made.
// Once true it stays true.
func (g *AuthGate) ShuttingDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shutdown
}

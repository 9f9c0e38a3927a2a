// Package transact serializes request/response transactions with the
// peer: one request outstanding, one answer, bounded wait.
package transact

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/robotalks/stmlink/pkg/framework"
)

var (
	// ErrSendFailed indicates the request could not be queued.
	ErrSendFailed = errors.New("send failed")
	// ErrNoAnswer indicates the peer didn't answer in time.
	ErrNoAnswer = errors.New("no answer")
)

// Config defines the timing of a Gate.
type Config struct {
	// SettleDelay is waited before each send, and after a failed one.
	SettleDelay time.Duration
	// AnswerTimeout bounds the wait for the answer.
	AnswerTimeout time.Duration
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		SettleDelay:   300 * time.Millisecond,
		AnswerTimeout: 1000 * time.Millisecond,
	}
}

// Gate is a single-outstanding-transaction gate. The owner calls Execute,
// the goroutine receiving the response calls Answer.
type Gate struct {
	Config

	lock      sync.Mutex
	requested bool
	answered  bool
	waker     framework.Waker
}

// New creates a Gate.
func New(config Config) *Gate {
	return &Gate{Config: config}
}

// Lock locks the mutex shared with the answering side.
func (g *Gate) Lock() {
	g.lock.Lock()
}

// Unlock unlocks the mutex.
func (g *Gate) Unlock() {
	g.lock.Unlock()
}

// Pending tells whether a request is outstanding.
func (g *Gate) Pending() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.requested
}

// Execute sends a request unless one is outstanding, then waits for the
// answer. A request left unanswered is dropped so the next Execute sends
// again.
func (g *Gate) Execute(ctx context.Context, send func() error) error {
	g.lock.Lock()
	requested := g.requested
	g.lock.Unlock()

	if !requested {
		if err := framework.Sleep(ctx, g.SettleDelay); err != nil {
			return err
		}
		// armed before sending, the answer may arrive before send returns
		g.waker.Clear()
		g.lock.Lock()
		g.requested, g.answered = true, false
		g.lock.Unlock()
		if err := send(); err != nil {
			g.lock.Lock()
			g.requested = false
			g.lock.Unlock()
			if serr := framework.Sleep(ctx, g.SettleDelay); serr != nil {
				return serr
			}
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
	}

	runtime.Gosched()

	deadline := time.Now().Add(g.AnswerTimeout)
	for {
		g.lock.Lock()
		answered := g.answered
		g.lock.Unlock()
		if answered {
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			g.lock.Lock()
			answered = g.answered
			if !answered {
				g.requested = false
			}
			g.lock.Unlock()
			if !answered {
				return ErrNoAnswer
			}
			break
		}
		if _, err := g.waker.Sleep(ctx, remaining); err != nil {
			return err
		}
	}

	g.lock.Lock()
	g.requested, g.answered = false, false
	g.lock.Unlock()
	return nil
}

// Answer runs accept under the gate mutex if a request is outstanding,
// and marks the request answered when it returns true. A nil accept
// takes any answer.
func (g *Gate) Answer(accept func() bool) bool {
	g.lock.Lock()
	if !g.requested || g.answered || (accept != nil && !accept()) {
		g.lock.Unlock()
		return false
	}
	g.answered = true
	g.lock.Unlock()
	g.waker.Wake()
	return true
}

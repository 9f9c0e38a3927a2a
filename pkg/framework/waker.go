package framework

import (
	"context"
	"sync"
	"time"
)

// Waker is a one-slot wake-up signal. Wake never blocks and wakes at
// most one pending Sleep; a wake with no sleeper is remembered until
// the next Sleep.
type Waker struct {
	once sync.Once
	ch   chan struct{}
}

func (w *Waker) init() chan struct{} {
	w.once.Do(func() {
		w.ch = make(chan struct{}, 1)
	})
	return w.ch
}

// Wake signals the sleeper.
func (w *Waker) Wake() {
	select {
	case w.init() <- struct{}{}:
	default:
	}
}

// Clear drops a remembered wake.
func (w *Waker) Clear() {
	select {
	case <-w.init():
	default:
	}
}

// Sleep waits for d or a wake, whichever comes first, and reports
// whether it was woken. It returns ctx.Err() when ctx is done.
func (w *Waker) Sleep(ctx context.Context, d time.Duration) (bool, error) {
	ch := w.init()
	if d <= 0 {
		select {
		case <-ch:
			return true, nil
		default:
			return false, ctx.Err()
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

// Sleep waits for d unless ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

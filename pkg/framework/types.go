package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Poller performs one non-blocking unit of work per loop iteration.
// Errors are logged by the loop and never stop it.
type Poller interface {
	Poll(context.Context) error
}

// PollFunc is the func form of Poller.
type PollFunc func(context.Context) error

// Poll implements Poller.
func (f PollFunc) Poll(ctx context.Context) error {
	return f(ctx)
}

// LoopControl exposes access to the polling loop.
type LoopControl interface {
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

package transport

import (
	"context"
	"sync"

	"github.com/robotalks/stmlink/pkg/wire"
)

// Handler handles an inbound command. body is the payload without the
// command id.
type Handler interface {
	HandleCommand(ctx context.Context, body []byte)
}

// HandleCommandFunc is the func form of Handler.
type HandleCommandFunc func(ctx context.Context, body []byte)

// HandleCommand implements Handler.
func (f HandleCommandFunc) HandleCommand(ctx context.Context, body []byte) {
	f(ctx, body)
}

// CommandTable maps inbound command ids to handlers. Its size is fixed
// at construction, the ACK id is reserved.
type CommandTable struct {
	lock     sync.RWMutex
	handlers []Handler
}

// NewCommandTable creates a table for command ids [0, size).
func NewCommandTable(size int) *CommandTable {
	if size < 1 {
		size = 1
	}
	return &CommandTable{handlers: make([]Handler, size)}
}

// Size returns the number of command ids.
func (t *CommandTable) Size() int {
	return len(t.handlers)
}

// Register installs or replaces the handler of cmd. A nil handler
// unregisters.
func (t *CommandTable) Register(cmd byte, h Handler) error {
	if cmd == wire.CmdAck {
		return ErrReservedCommand
	}
	if int(cmd) >= len(t.handlers) {
		return &CommandRangeError{Command: cmd, Size: len(t.handlers)}
	}
	t.lock.Lock()
	t.handlers[cmd] = h
	t.lock.Unlock()
	return nil
}

// Lookup returns the handler of cmd and whether cmd is in the table.
func (t *CommandTable) Lookup(cmd byte) (Handler, bool) {
	if int(cmd) >= len(t.handlers) {
		return nil, false
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.handlers[cmd], true
}

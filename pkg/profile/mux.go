package profile

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/wire"
)

// CharWriter writes characteristic values to the peer.
type CharWriter interface {
	WriteChar(profile, char byte, data []byte) error
}

// CharWriterFunc is the func form of CharWriter.
type CharWriterFunc func(profile, char byte, data []byte) error

// WriteChar implements CharWriter.
func (f CharWriterFunc) WriteChar(profile, char byte, data []byte) error {
	return f(profile, char, data)
}

// CharHandler handles characteristic values of one profile.
type CharHandler interface {
	HandleChar(ctx context.Context, char byte, data []byte)
}

// HandleCharFunc is the func form of CharHandler.
type HandleCharFunc func(ctx context.Context, char byte, data []byte)

// HandleChar implements CharHandler.
func (f HandleCharFunc) HandleChar(ctx context.Context, char byte, data []byte) {
	f(ctx, char, data)
}

// Handler handles characteristic values of any profile.
type Handler interface {
	HandleProfileChar(ctx context.Context, profile, char byte, data []byte)
}

// Mux dispatches the body of an inbound characteristic write to the
// handler of its profile. It implements transport.Handler.
type Mux struct {
	// Fallback receives values of profiles without a handler.
	Fallback Handler

	lock     sync.RWMutex
	handlers map[byte]CharHandler
}

// NewMux creates a Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[byte]CharHandler)}
}

// Register installs the handler of profile. A nil handler unregisters.
func (m *Mux) Register(profile byte, h CharHandler) *Mux {
	m.lock.Lock()
	if h == nil {
		delete(m.handlers, profile)
	} else {
		m.handlers[profile] = h
	}
	m.lock.Unlock()
	return m
}

// HandleCommand implements transport.Handler.
func (m *Mux) HandleCommand(ctx context.Context, body []byte) {
	if len(body) < 3 {
		glog.V(2).Infof("short char write % x", body)
		return
	}
	profile, char, data := body[0], body[1], wire.ParseBody(body)
	m.lock.RLock()
	h := m.handlers[profile]
	m.lock.RUnlock()
	switch {
	case h != nil:
		h.HandleChar(ctx, char, data)
	case m.Fallback != nil:
		m.Fallback.HandleProfileChar(ctx, profile, char, data)
	default:
		glog.V(2).Infof("no handler for profile %s char %d", Name(profile), char)
	}
}

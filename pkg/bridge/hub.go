package bridge

import (
	"context"
	"sync"

	"github.com/robotalks/stmlink/pkg/fota"
)

// Hub fans characteristic values and transfer status out to every attached
// bridge. A bridge attached late receives the last status first.
type Hub struct {
	lock    sync.RWMutex
	bridges map[*Bridge]struct{}
	status  *fota.Registers
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{bridges: make(map[*Bridge]struct{})}
}

// Attach adds a bridge.
func (h *Hub) Attach(b *Bridge) {
	h.lock.Lock()
	h.bridges[b] = struct{}{}
	status := h.status
	h.lock.Unlock()
	if status != nil {
		b.TransferStatus(*status)
	}
}

// Detach removes a bridge.
func (h *Hub) Detach(b *Bridge) {
	h.lock.Lock()
	delete(h.bridges, b)
	h.lock.Unlock()
}

// Len returns the number of attached bridges.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.bridges)
}

// Serve attaches b for as long as it runs.
func (h *Hub) Serve(ctx context.Context, b *Bridge) error {
	h.Attach(b)
	defer h.Detach(b)
	return b.Run(ctx)
}

func (h *Hub) each(fn func(*Bridge)) {
	h.lock.RLock()
	bridges := make([]*Bridge, 0, len(h.bridges))
	for b := range h.bridges {
		bridges = append(bridges, b)
	}
	h.lock.RUnlock()
	for _, b := range bridges {
		fn(b)
	}
}

// HandleProfileChar implements profile.Handler.
func (h *Hub) HandleProfileChar(ctx context.Context, profile, char byte, data []byte) {
	h.each(func(b *Bridge) { b.HandleProfileChar(ctx, profile, char, data) })
}

// TransferStatus implements fota.StatusSink.
func (h *Hub) TransferStatus(r fota.Registers) {
	h.lock.Lock()
	h.status = &r
	h.lock.Unlock()
	h.each(func(b *Bridge) { b.TransferStatus(r) })
}

package transport

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/wire"
)

func (t *Transport) pollIncoming(ctx context.Context) {
	for {
		t.rxLock.Lock()
		queued := t.rx.Len()
		res := t.rxDec.Decode(t.rx, wire.ModeUntilEmpty)
		if t.rx.Len() < queued {
			signalSpace(&t.rxSpace)
		}
		t.rxLock.Unlock()
		if res.Status != wire.DecodeOK {
			return
		}
		t.dispatch(ctx, res.Payload)
	}
}

func (t *Transport) dispatch(ctx context.Context, payload []byte) {
	cmd := payload[0]
	if cmd == wire.CmdAck {
		t.handleAck(payload[1:])
		return
	}
	h, ok := t.Commands.Lookup(cmd)
	if !ok {
		glog.V(2).Infof("drop unknown command %d", cmd)
		return
	}
	var hdr [3]byte
	copy(hdr[:], payload)
	// never wait here, the TX ring is drained by this goroutine
	if err := t.push(wire.AckPayload(hdr[0], hdr[1], hdr[2]), 0); err != nil {
		glog.Warningf("ACK of command %d not queued: %v", cmd, err)
	}
	if h != nil {
		h.HandleCommand(ctx, payload[1:])
	}
}

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/wire"
)

type outState int

const (
	outSearchPacket outState = iota
	outBuildPacket
	outSendPacket
	outAckWaiting
)

func (s outState) String() string {
	switch s {
	case outBuildPacket:
		return "build"
	case outSendPacket:
		return "send"
	case outAckWaiting:
		return "ack-waiting"
	default:
		return "search"
	}
}

// outgoing is the state of the frame being sent. Only the polling
// goroutine touches it.
type outgoing struct {
	state    outState
	payload  []byte
	frame    [wire.MaxFrameSize]byte
	size     int
	needAck  bool
	attempts int
	deadline time.Time
}

func (t *Transport) pollOutgoing(ctx context.Context) error {
	o := &t.out
	for {
		switch o.state {
		case outSearchPacket:
			t.txLock.Lock()
			queued := t.tx.Len()
			res := t.txDec.Decode(t.tx, wire.ModeUntilEmpty)
			if t.tx.Len() < queued {
				signalSpace(&t.txSpace)
			}
			t.txLock.Unlock()
			if res.Status != wire.DecodeOK {
				return nil
			}
			o.payload = res.Payload
			o.state = outBuildPacket

		case outBuildPacket:
			n, err := wire.Encode(o.payload, o.frame[:])
			if err != nil {
				glog.Warningf("drop outgoing payload: %v", err)
				o.state = outSearchPacket
				continue
			}
			o.size, o.attempts = n, 0
			o.needAck = o.payload[0] != wire.CmdAck
			o.state = outSendPacket

		case outSendPacket:
			delay := SettleDelay(o.size, t.config.Baud, t.config.SettleFactor)
			if err := framework.Sleep(ctx, delay); err != nil {
				return err
			}
			if _, err := t.port.Write(o.frame[:o.size]); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			o.attempts++
			glog.V(2).Infof("sent % x attempt %d", o.payload, o.attempts)
			if !o.needAck {
				o.state = outSearchPacket
				continue
			}
			o.deadline = time.Now().Add(t.config.AckTimeout)
			o.state = outAckWaiting
			return nil

		case outAckWaiting:
			if time.Now().Before(o.deadline) {
				return nil
			}
			if o.attempts < t.config.AckAttempts {
				o.state = outSendPacket
				continue
			}
			glog.Warningf("no ACK for % x after %d attempts", o.payload, o.attempts)
			t.SetLastPackageReceived(false)
			o.state = outSearchPacket
		}
	}
}

// handleAck clears the pending frame if ack echoes it.
func (t *Transport) handleAck(body []byte) {
	ack, ok := wire.ParseAck(body)
	if !ok {
		return
	}
	o := &t.out
	if o.state != outAckWaiting || !ack.Matches(o.payload) {
		glog.V(2).Infof("unexpected ACK %d/%d/%d", ack.Command, ack.Profile, ack.Char)
		return
	}
	t.SetLastPackageReceived(true)
	o.state = outSearchPacket
}

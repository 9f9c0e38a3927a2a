package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/ring"
	"github.com/robotalks/stmlink/pkg/wire"
)

// Transport is the framed serial link to the peer processor.
//
// Frames to send are queued encoded in the TX ring and picked up by the
// outgoing state machine. Bytes from the port are queued in the RX ring
// by the reader and decoded by the incoming dispatcher. Poll runs both
// and must be driven by a single goroutine.
type Transport struct {
	Commands *CommandTable

	config Config
	port   io.ReadWriter

	txLock  sync.Mutex
	tx      *ring.Buffer
	txDec   wire.Decoder
	txSpace chan struct{}

	rxLock  sync.Mutex
	rx      *ring.Buffer
	rxDec   wire.Decoder
	rxSpace chan struct{}

	out outgoing

	stateLock           sync.Mutex
	lastPackageReceived bool
	trigger             framework.LoopControl
}

// New creates a Transport over port.
func New(port io.ReadWriter, config Config) *Transport {
	config = config.withDefaults()
	return &Transport{
		Commands:            NewCommandTable(config.Commands),
		config:              config,
		port:                port,
		tx:                  ring.MustNew(config.TxFrames * wire.MaxFrameSize),
		txSpace:             make(chan struct{}),
		rx:                  ring.MustNew(config.RxFrames * wire.MaxFrameSize),
		rxSpace:             make(chan struct{}),
		lastPackageReceived: true,
	}
}

// Config returns the effective configuration.
func (t *Transport) Config() Config {
	return t.config
}

// Register installs the handler of an inbound command id.
func (t *Transport) Register(cmd byte, h Handler) error {
	return t.Commands.Register(cmd, h)
}

// Enqueue queues an application message for sending. It waits up to
// EnqueueTimeout for TX ring space.
func (t *Transport) Enqueue(cmd, profile, char byte, data []byte) error {
	msg := &wire.Message{Command: cmd, Profile: profile, Char: char, Data: data}
	payload, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return t.push(payload, t.config.EnqueueTimeout)
}

// EnqueuePayload queues a raw payload for sending.
func (t *Transport) EnqueuePayload(payload []byte) error {
	return t.push(payload, t.config.EnqueueTimeout)
}

// WriteChar sends a characteristic value write to the peer.
func (t *Transport) WriteChar(profile, char byte, data []byte) error {
	return t.Enqueue(wire.CmdAppCharWrite, profile, char, data)
}

// TryWriteChar is WriteChar failing with ring.ErrFull instead of waiting
// for TX ring space. Handlers run by Poll use it, only Poll frees space.
func (t *Transport) TryWriteChar(profile, char byte, data []byte) error {
	msg := &wire.Message{Command: wire.CmdAppCharWrite, Profile: profile, Char: char, Data: data}
	payload, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return t.push(payload, 0)
}

// RequestAllChars asks the peer to send every characteristic of profile.
func (t *Transport) RequestAllChars(profile byte) error {
	return t.EnqueuePayload([]byte{wire.CmdReqAllChars, profile})
}

// LastPackageReceived tells whether the last frame expecting an ACK got
// one.
func (t *Transport) LastPackageReceived() bool {
	t.stateLock.Lock()
	defer t.stateLock.Unlock()
	return t.lastPackageReceived
}

// SetLastPackageReceived overrides the link status.
func (t *Transport) SetLastPackageReceived(received bool) {
	t.stateLock.Lock()
	t.lastPackageReceived = received
	t.stateLock.Unlock()
}

func (t *Transport) push(payload []byte, timeout time.Duration) error {
	var frame [wire.MaxFrameSize]byte
	n, err := wire.Encode(payload, frame[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	if n > t.tx.Cap() {
		return ErrInvalidParam
	}
	var timer *time.Timer
	for {
		t.txLock.Lock()
		if t.tx.SpaceAvailable() >= n {
			for _, b := range frame[:n] {
				t.tx.Push(b)
			}
			t.txLock.Unlock()
			t.triggerNext()
			return nil
		}
		spaceCh := t.txSpace
		t.txLock.Unlock()

		if timeout <= 0 {
			return ring.ErrFull
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-spaceCh:
		case <-timer.C:
			return ring.ErrFull
		}
	}
}

// signalSpace wakes everyone waiting for space in a ring. The caller
// holds the lock of that ring.
func signalSpace(ch *chan struct{}) {
	close(*ch)
	*ch = make(chan struct{})
}

func (t *Transport) triggerNext() {
	t.stateLock.Lock()
	trigger := t.trigger
	t.stateLock.Unlock()
	if trigger != nil {
		trigger.TriggerNext()
	}
}

// Poll implements framework.Poller. It dispatches every pending inbound
// frame and then advances the outgoing state machine.
func (t *Transport) Poll(ctx context.Context) error {
	t.pollIncoming(ctx)
	return t.pollOutgoing(ctx)
}

// AddToLoop implements framework.LoopAdder.
func (t *Transport) AddToLoop(l *framework.Loop) {
	t.stateLock.Lock()
	t.trigger = l
	t.stateLock.Unlock()
	// t is also a Runnable, which would start a second polling loop
	l.AddPoller(framework.PollFunc(t.Poll))
	l.AddRunnable(framework.NamedRun("transport-reader", framework.RunFunc(t.readLoop)))
}

// Run implements framework.Runnable with a dedicated polling loop.
func (t *Transport) Run(ctx context.Context) error {
	l := &framework.Loop{Interval: t.config.PollInterval}
	return l.Add(t).Run(ctx)
}

func (t *Transport) readLoop(ctx context.Context) error {
	if closer, ok := t.port.(io.Closer); ok {
		return framework.RunWithContextCancel(ctx, func() { closer.Close() }, func() error {
			return t.read(ctx)
		})
	}
	return t.read(ctx)
}

func (t *Transport) read(ctx context.Context) error {
	buf := make([]byte, t.config.ReadSize)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			if err := t.receive(ctx, buf[:n]); err != nil {
				return err
			}
			t.triggerNext()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("transport read error: %v", err)
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// receive queues data into the RX ring, waiting for the dispatcher to
// make room when it's full.
func (t *Transport) receive(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		t.rxLock.Lock()
		for len(data) > 0 && t.rx.Push(data[0]) == nil {
			data = data[1:]
		}
		spaceCh := t.rxSpace
		t.rxLock.Unlock()
		if len(data) == 0 {
			break
		}
		t.triggerNext()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-spaceCh:
		}
	}
	return nil
}

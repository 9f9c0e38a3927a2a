package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/fota"
	fx "github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/msgs"
)

// DefaultQueueSize is the number of outgoing packets a Bridge buffers.
const DefaultQueueSize = 64

// ErrQueueFull indicates an outgoing packet was dropped because the
// client is not keeping up.
var ErrQueueFull = errors.New("outgoing queue full")

type outPacket struct {
	data   []byte
	status bool
}

// Bridge forwards characteristic writes from a packet stream into the link
// and publishes characteristic values and transfer status back.
// Outgoing packets are queued and written by Run, so publishing never
// waits on the client.
type Bridge struct {
	ReadWriter PacketReadWriter
	Link       Link
	Codec      msgs.Codec

	queueOnce sync.Once
	queueSize int
	queue     chan outPacket
}

// New creates a Bridge encoding packets with protobuf.
func New(rw PacketReadWriter, link Link) *Bridge {
	return &Bridge{ReadWriter: rw, Link: link, Codec: msgs.Proto, queueSize: DefaultQueueSize}
}

// WithQueueSize sets the number of outgoing packets buffered before
// new ones are dropped. It must be called before the Bridge is used.
func (b *Bridge) WithQueueSize(size int) *Bridge {
	b.queueSize = size
	return b
}

// WithCodec sets the codec of packets.
func (b *Bridge) WithCodec(codec msgs.Codec) *Bridge {
	b.Codec = codec
	return b
}

// SendValue publishes a characteristic value.
func (b *Bridge) SendValue(profile, char byte, data []byte) error {
	return b.send(&msgs.Packet{CharValue: &msgs.CharValue{
		Profile: uint32(profile),
		Char:    uint32(char),
		Data:    data,
	}}, false)
}

// HandleProfileChar implements profile.Handler.
func (b *Bridge) HandleProfileChar(ctx context.Context, profile, char byte, data []byte) {
	if err := b.SendValue(profile, char, data); err != nil {
		glog.Warningf("bridge: send value %d/%d: %v", profile, char, err)
	}
}

// TransferStatus implements fota.StatusSink.
func (b *Bridge) TransferStatus(r fota.Registers) {
	if err := b.send(&msgs.Packet{TransferStatus: StatusFrom(r)}, true); err != nil {
		glog.Warningf("bridge: send status: %v", err)
	}
}

// StatusFrom converts workflow registers into a status message.
func StatusFrom(r fota.Registers) *msgs.TransferStatus {
	return &msgs.TransferStatus{
		State:            r.State.String(),
		AvailableVersion: r.AvailableVersion.String(),
		RunningVersion:   r.RunningVersion.String(),
		TotalLength:      r.TotalImageLength,
		Offset:           r.Offset(),
		Progress:         r.Progress(),
		Icon:             r.Icon.String(),
		Paused:           r.Paused,
		Reason:           r.Reason,
	}
}

func (b *Bridge) outbox() chan outPacket {
	b.queueOnce.Do(func() {
		size := b.queueSize
		if size <= 0 {
			size = DefaultQueueSize
		}
		b.queue = make(chan outPacket, size)
	})
	return b.queue
}

func (b *Bridge) send(pkt *msgs.Packet, status bool) error {
	data, err := b.Codec.Marshal(pkt)
	if err != nil {
		return err
	}
	select {
	case b.outbox() <- outPacket{data: data, status: status}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Bridge) write(out outPacket) error {
	if sw, ok := b.ReadWriter.(StatusWriter); ok && out.status {
		return sw.WriteStatus(out.data)
	}
	return b.ReadWriter.WritePacket(out.data)
}

func (b *Bridge) drain(ctx context.Context) {
	queue := b.outbox()
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-queue:
			if err := b.write(out); err != nil {
				glog.Warningf("bridge: write: %v", err)
			}
		}
	}
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.drain(ctx)
	if closer, ok := b.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, func() error { return b.serve(ctx) })
	}
	return b.serve(ctx)
}

func (b *Bridge) serve(ctx context.Context) error {
	for {
		data, err := b.ReadWriter.ReadPacket()
		if err != nil {
			return err
		}
		var pkt msgs.Packet
		if err := b.Codec.Unmarshal(data, &pkt); err != nil {
			glog.V(2).Infof("bridge: drop packet: %v", err)
			continue
		}
		if err := b.dispatch(&pkt); err != nil {
			glog.Warningf("bridge: %v", err)
		}
	}
}

func (b *Bridge) dispatch(pkt *msgs.Packet) error {
	switch {
	case pkt.CharWrite != nil:
		w := pkt.CharWrite
		if w.Profile > 0xff || w.Char > 0xff {
			return fmt.Errorf("char write %d/%d out of range", w.Profile, w.Char)
		}
		if err := b.Link.WriteChar(byte(w.Profile), byte(w.Char), w.Data); err != nil {
			return fmt.Errorf("char write %d/%d: %w", w.Profile, w.Char, err)
		}
	case pkt.RequestAllChars != nil:
		p := pkt.RequestAllChars.Profile
		if p > 0xff {
			return fmt.Errorf("request all chars %d out of range", p)
		}
		if err := b.Link.RequestAllChars(byte(p)); err != nil {
			return fmt.Errorf("request all chars %d: %w", p, err)
		}
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	if adder, ok := b.ReadWriter.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := b.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(b)
}

package wire

import (
	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/ring"
)

// Mode selects how much work a single Decode call performs.
type Mode int

const (
	// ModeOneCycle processes one byte step.
	ModeOneCycle Mode = iota
	// ModeUntilEmpty keeps going until a frame completes or the buffer runs dry.
	ModeUntilEmpty
)

// DecodeStatus is the outcome of a Decode call.
type DecodeStatus int

const (
	// DecodeEmpty means the buffer ran out of bytes before a frame completed.
	DecodeEmpty DecodeStatus = iota
	// DecodeBusy means a one cycle step finished without completing a frame.
	DecodeBusy
	// DecodeOK means a valid frame was decoded and consumed.
	DecodeOK
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeBusy:
		return "busy"
	case DecodeOK:
		return "ok"
	default:
		return "empty"
	}
}

// Result is the outcome of a Decode call.
type Result struct {
	Status  DecodeStatus
	Payload []byte
}

type decodeState int

const (
	stateSeekSync       decodeState = iota // popping bytes until a sync byte
	stateReadLength                        // peeking the payload length
	stateReadPayload                       // peeking payload bytes
	stateReadChecksumLo                    // peeking checksum low byte
	stateReadChecksumHi                    // peeking checksum high byte
	stateReadTail                          // peeking the tail byte
)

// Decoder is a streaming frame decoder over a ring.Buffer. The state persists
// between calls so a frame may arrive across several of them. The ring buffer
// lookahead cursor belongs to the decoder while a candidate frame is open.
type Decoder struct {
	state    decodeState
	payload  [MaxPayloadSize]byte
	length   int
	received int
	checksum uint16
}

// Reset drops any partially decoded frame.
func (d *Decoder) Reset() {
	d.state, d.length, d.received, d.checksum = stateSeekSync, 0, 0, 0
}

// Decode extracts the next frame from buf.
func (d *Decoder) Decode(buf *ring.Buffer, mode Mode) Result {
	if buf.Status() == ring.StatusEmpty {
		return Result{Status: DecodeEmpty}
	}
	for {
		if res, done := d.step(buf); done {
			return res
		}
		if mode != ModeUntilEmpty {
			return Result{Status: DecodeBusy}
		}
	}
}

func (d *Decoder) step(buf *ring.Buffer) (Result, bool) {
	var b byte
	var err error
	if d.state == stateSeekSync {
		b, err = buf.Pop()
		buf.ResetPeek()
	} else {
		b, err = buf.Peek()
	}
	if err != nil {
		return Result{Status: DecodeEmpty}, true
	}

	switch d.state {
	case stateSeekSync:
		if b == SyncByte {
			d.state = stateReadLength
		}
	case stateReadLength:
		if b == 0 {
			d.resync(buf)
			break
		}
		d.length, d.received, d.checksum = int(b), 0, 0
		d.state = stateReadPayload
	case stateReadPayload:
		d.payload[d.received] = b
		if d.received++; d.received >= d.length {
			d.state = stateReadChecksumLo
		}
	case stateReadChecksumLo:
		d.checksum = uint16(b)
		d.state = stateReadChecksumHi
	case stateReadChecksumHi:
		d.checksum |= uint16(b) << 8
		if d.checksum != Checksum(d.payload[:d.length]) {
			glog.V(3).Infof("checksum mismatch %04x, resync", d.checksum)
			d.resync(buf)
			break
		}
		d.state = stateReadTail
	case stateReadTail:
		if b != TailByte {
			glog.V(3).Infof("bad tail %02x, resync", b)
			d.resync(buf)
			break
		}
		// length, payload, checksum and tail were only peeked so far
		buf.Discard(buf.Peeked())
		d.state = stateSeekSync
		payload := make([]byte, d.length)
		copy(payload, d.payload[:d.length])
		return Result{Status: DecodeOK, Payload: payload}, true
	}
	return Result{}, false
}

// resync abandons the candidate frame. Its sync byte is already popped, the
// rest is left in place for the next search.
func (d *Decoder) resync(buf *ring.Buffer) {
	buf.ResetPeek()
	d.state = stateSeekSync
}

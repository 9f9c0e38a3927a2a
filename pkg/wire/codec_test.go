package wire

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/stmlink/pkg/ring"
)

func fill(t *testing.T, capacity int, chunks ...[]byte) *ring.Buffer {
	buf := ring.MustNew(capacity)
	for _, chunk := range chunks {
		for _, b := range chunk {
			require.NoError(t, buf.Push(b))
		}
	}
	return buf
}

func mustFrame(t *testing.T, payload []byte) []byte {
	frame, err := AppendFrame(nil, payload)
	require.NoError(t, err)
	return frame
}

// drain decodes until the buffer reports empty and returns every payload.
func drain(d *Decoder, buf *ring.Buffer) (payloads [][]byte) {
	for {
		res := d.Decode(buf, ModeUntilEmpty)
		if res.Status != DecodeOK {
			return
		}
		payloads = append(payloads, res.Payload)
	}
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name     string
		payload  []byte
		expected uint16
	}{
		{"single", []byte{0x01}, 0xffff},
		{"several", []byte{1, 2, 3}, 0xfffa},
		{"zero sum", []byte{0x00, 0x00}, 0x0000},
		{"wraps", []byte{0xff, 0xff, 0xff}, 0xfd03},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ck := Checksum(tc.payload)
			require.Equal(t, tc.expected, ck)
			var sum uint16
			for _, b := range tc.payload {
				sum += uint16(b)
			}
			require.Equal(t, uint16(0), sum+ck)
		})
	}
}

func TestEncode(t *testing.T) {
	out := make([]byte, 16)
	n, err := Encode([]byte{1, 2, 3}, out)
	require.NoError(t, err)
	require.Equal(t, []byte{0x5a, 0x03, 1, 2, 3, 0xfa, 0xff, 0xa5}, out[:n])

	n, err = Encode(nil, out)
	require.Equal(t, ErrPayloadSize, err)
	require.Zero(t, n)

	n, err = Encode(make([]byte, MaxPayloadSize+1), make([]byte, 300))
	require.Equal(t, ErrPayloadSize, err)
	require.Zero(t, n)

	n, err = Encode([]byte{1, 2, 3}, make([]byte, 7))
	require.Equal(t, ErrShortBuffer, err)
	require.Zero(t, n)

	n, err = Encode(make([]byte, MaxPayloadSize), make([]byte, MaxFrameSize))
	require.NoError(t, err)
	require.Equal(t, MaxFrameSize, n)
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for size := 1; size <= MaxPayloadSize; size++ {
		payload := make([]byte, size)
		r.Read(payload)
		buf := fill(t, MaxFrameSize, mustFrame(t, payload))
		var d Decoder
		res := d.Decode(buf, ModeUntilEmpty)
		require.Equal(t, DecodeOK, res.Status, "size %d", size)
		require.Equal(t, payload, res.Payload)
		require.Equal(t, ring.StatusEmpty, buf.Status())
		require.Zero(t, buf.Peeked())
	}
}

func TestChecksumSensitivity(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	payload := make([]byte, 24)
	r.Read(payload)
	frame := mustFrame(t, payload)
	// flip every bit of the payload and checksum fields, sync/len/tail excluded.
	for pos := 2; pos < len(frame)-1; pos++ {
		for bit := uint(0); bit < 8; bit++ {
			corrupted := append([]byte(nil), frame...)
			corrupted[pos] ^= 1 << bit
			buf := fill(t, MaxFrameSize, corrupted)
			var d Decoder
			require.Empty(t, drain(&d, buf), "pos %d bit %d", pos, bit)
		}
	}
}

func TestResyncUnderNoise(t *testing.T) {
	payload := []byte{0x01, 0x06, 0x03, 0x02, 0xaa, 0xbb}
	testCases := []struct {
		name   string
		before []byte
		after  []byte
	}{
		{"no noise", nil, nil},
		{"leading garbage", []byte{0x00, 0x13, 0xff, 0xa5}, nil},
		{"trailing garbage", nil, []byte{0x01, 0x02, 0x03}},
		{"fake sync", []byte{0x5a, 0x00, 0x5a, 0x02, 0x01}, []byte{0x44}},
		{"zero length", []byte{0x5a, 0x00}, []byte{0x5a, 0x00}},
		{"broken candidate", mustFrame(t, []byte{9, 9, 9})[:5], nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := fill(t, 512, tc.before, mustFrame(t, payload), tc.after)
			var d Decoder
			got := drain(&d, buf)
			require.Equal(t, [][]byte{payload}, got)
			// what remains is at most a candidate waiting for more bytes
			for d.Decode(buf, ModeUntilEmpty).Status != DecodeEmpty {
			}
			require.True(t, buf.Len() == 0 || d.state != stateSeekSync)
		})
	}
}

func TestBadTail(t *testing.T) {
	frame := mustFrame(t, []byte{1, 2, 3})
	frame[len(frame)-1] = 0x00
	next := mustFrame(t, []byte{4, 5})
	buf := fill(t, 64, frame, next)
	var d Decoder
	require.Equal(t, [][]byte{{4, 5}}, drain(&d, buf))
	require.Equal(t, ring.StatusEmpty, buf.Status())
}

func TestSplitArrival(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30, 0x40}
	frame := mustFrame(t, payload)
	buf := ring.MustNew(32)
	var d Decoder
	for n, b := range frame {
		require.NoError(t, buf.Push(b))
		res := d.Decode(buf, ModeUntilEmpty)
		if n < len(frame)-1 {
			require.Equal(t, DecodeEmpty, res.Status)
			continue
		}
		require.Equal(t, DecodeOK, res.Status)
		require.Equal(t, payload, res.Payload)
	}
	require.Equal(t, ring.StatusEmpty, buf.Status())
}

func TestOneCycle(t *testing.T) {
	frame := mustFrame(t, []byte{0x07})
	buf := fill(t, 16, frame)
	var d Decoder
	for i := 0; i < len(frame)-1; i++ {
		require.Equal(t, DecodeBusy, d.Decode(buf, ModeOneCycle).Status)
	}
	res := d.Decode(buf, ModeOneCycle)
	require.Equal(t, DecodeOK, res.Status)
	require.Equal(t, []byte{0x07}, res.Payload)
	require.Equal(t, DecodeEmpty, d.Decode(buf, ModeOneCycle).Status)
}

func TestMultipleFrames(t *testing.T) {
	buf := fill(t, 256,
		mustFrame(t, []byte{1}),
		mustFrame(t, []byte{2, 2}),
		[]byte{0xee},
		mustFrame(t, []byte{3, 3, 3}))
	var d Decoder
	require.Equal(t, [][]byte{{1}, {2, 2}, {3, 3, 3}}, drain(&d, buf))
}

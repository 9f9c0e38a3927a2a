package wire

// Frame layout constants.
const (
	SyncByte       byte = 0x5A
	TailByte       byte = 0xA5
	Overhead            = 5
	MaxPayloadSize      = 255
	MaxFrameSize        = MaxPayloadSize + Overhead
)

// Checksum computes the two's complement of the 16-bit sum of payload, so
// that the sum of payload and checksum is 0 modulo 2^16.
func Checksum(payload []byte) uint16 {
	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	return ^sum + 1
}

// FrameSize returns the encoded size of a payload of n bytes.
func FrameSize(n int) int {
	return n + Overhead
}

// Encode writes the frame of payload into out and returns the frame length.
// Nothing is written and 0 is returned when the payload is empty, larger than
// MaxPayloadSize, or out is too small.
func Encode(payload, out []byte) (int, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return 0, ErrPayloadSize
	}
	size := FrameSize(len(payload))
	if len(out) < size {
		return 0, ErrShortBuffer
	}
	ck := Checksum(payload)
	out[0], out[1] = SyncByte, byte(len(payload))
	copy(out[2:], payload)
	out[size-3], out[size-2], out[size-1] = byte(ck), byte(ck>>8), TailByte
	return size, nil
}

// AppendFrame appends the frame of payload to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return dst, ErrPayloadSize
	}
	var frame [MaxFrameSize]byte
	n, err := Encode(payload, frame[:])
	if err != nil {
		return dst, err
	}
	return append(dst, frame[:n]...), nil
}

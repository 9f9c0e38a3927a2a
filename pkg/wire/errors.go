package wire

import "errors"

var (
	// ErrPayloadSize indicates an empty payload or one larger than MaxPayloadSize.
	ErrPayloadSize = errors.New("invalid payload size")
	// ErrShortBuffer indicates the output buffer can't hold the frame.
	ErrShortBuffer = errors.New("output buffer too small")
	// ErrDataSize indicates message data larger than MaxDataSize.
	ErrDataSize = errors.New("invalid data size")
	// ErrShortMessage indicates a payload too short for a message header.
	ErrShortMessage = errors.New("message too short")
)

package bridge

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// StatusWriter is implemented by a PacketReadWriter which carries transfer
// status separately from other packets.
type StatusWriter interface {
	WriteStatus([]byte) error
}

// Link is the dongle side of a bridge.
type Link interface {
	WriteChar(profile, char byte, data []byte) error
	RequestAllChars(profile byte) error
}

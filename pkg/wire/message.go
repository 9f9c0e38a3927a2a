package wire

import "fmt"

// Command ids carried in the first payload byte.
const (
	// CmdAck acknowledges a received frame in both directions.
	CmdAck byte = 0x00

	// CmdAppCharWrite carries a characteristic write to the peer.
	CmdAppCharWrite byte = 0x01
	// CmdReqAllChars asks the peer to send every characteristic of a profile.
	CmdReqAllChars byte = 0x02

	// CmdMainCharWrite carries a characteristic value from the peer.
	CmdMainCharWrite byte = 0x01
)

const (
	// HeaderSize is the size of command, profile, char and length bytes.
	HeaderSize = 4
	// MaxDataSize is the largest data carried by a message.
	MaxDataSize = MaxPayloadSize - HeaderSize
	// AckSize is the size of an ACK payload.
	AckSize = 4
)

// Message is an application payload.
type Message struct {
	Command byte
	Profile byte
	Char    byte
	Data    []byte
}

// Bytes returns the encoded payload.
func (m *Message) Bytes() ([]byte, error) {
	if len(m.Data) > MaxDataSize {
		return nil, ErrDataSize
	}
	p := make([]byte, HeaderSize+len(m.Data))
	p[0], p[1], p[2], p[3] = m.Command, m.Profile, m.Char, byte(len(m.Data))
	copy(p[HeaderSize:], m.Data)
	return p, nil
}

// String formats the message for logs.
func (m *Message) String() string {
	return fmt.Sprintf("cmd=%d profile=%d char=%d data=% x", m.Command, m.Profile, m.Char, m.Data)
}

// ParseMessage parses an application payload. The data length byte is
// clamped to what actually arrived.
func ParseMessage(payload []byte) (*Message, error) {
	if len(payload) < HeaderSize {
		return nil, ErrShortMessage
	}
	m := &Message{Command: payload[0], Profile: payload[1], Char: payload[2]}
	m.Data = ParseBody(payload[1:])
	return m, nil
}

// ParseBody extracts the data of a message body laid out as
// profileId | charId | dataLen | data.
func ParseBody(body []byte) []byte {
	if len(body) < 3 {
		return nil
	}
	n := int(body[2])
	if rest := len(body) - 3; n > rest {
		n = rest
	}
	return body[3 : 3+n]
}

// Ack is the content of an ACK payload.
type Ack struct {
	Command byte
	Profile byte
	Char    byte
}

// AckPayload builds the ACK payload echoing a received frame.
func AckPayload(cmd, profile, char byte) []byte {
	return []byte{CmdAck, cmd, profile, char}
}

// ParseAck parses the bytes following the ACK command id.
func ParseAck(body []byte) (Ack, bool) {
	if len(body) < 3 {
		return Ack{}, false
	}
	return Ack{Command: body[0], Profile: body[1], Char: body[2]}, true
}

// Matches tells if the ACK echoes the header of payload. Payloads shorter
// than a message header are matched on the bytes they have.
func (a Ack) Matches(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	hdr := [3]byte{a.Command, a.Profile, a.Char}
	for i := 0; i < len(payload) && i < len(hdr); i++ {
		if hdr[i] != payload[i] {
			return false
		}
	}
	return true
}

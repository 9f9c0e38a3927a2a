package msgs

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/protobuf/proto"
)

// Message is any message defined in this package.
type Message interface {
	proto.Message
}

// Codec encodes messages into packets.
type Codec interface {
	Name() string
	Marshal(Message) ([]byte, error)
	Unmarshal([]byte, Message) error
}

// UnknownCodecError is returned by CodecByName.
type UnknownCodecError struct {
	Name string
}

// Error implements error.
func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("unknown codec: %q", e.Name)
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(m Message) ([]byte, error) {
	return proto.Marshal(m)
}

func (protoCodec) Unmarshal(data []byte, m Message) error {
	return proto.Unmarshal(data, m)
}

type cborCodec struct {
	enc cbor.EncMode
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(m Message) ([]byte, error) {
	return c.enc.Marshal(m)
}

func (cborCodec) Unmarshal(data []byte, m Message) error {
	m.Reset()
	if err := cbor.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode cbor: %w", err)
	}
	return nil
}

var (
	// Proto encodes messages with protobuf.
	Proto Codec = protoCodec{}
	// CBOR encodes messages as cbor maps keyed by field number.
	CBOR Codec = mustCBOR()
)

func mustCBOR() Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc}
}

// CodecByName finds a codec. An empty name selects Proto.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", Proto.Name():
		return Proto, nil
	case CBOR.Name():
		return CBOR, nil
	}
	return nil, &UnknownCodecError{Name: name}
}

package msgs

import (
	"github.com/golang/protobuf/proto"
)

// CharWrite asks the dongle to write a characteristic of the peer.
type CharWrite struct {
	Profile uint32 `protobuf:"varint,1,opt,name=profile,proto3" json:"profile,omitempty" cbor:"1,keyasint,omitempty"`
	Char    uint32 `protobuf:"varint,2,opt,name=char,proto3" json:"char,omitempty" cbor:"2,keyasint,omitempty"`
	Data    []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

// Reset implements proto.Message.
func (m *CharWrite) Reset() { *m = CharWrite{} }

// String implements proto.Message.
func (m *CharWrite) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*CharWrite) ProtoMessage() {}

// CharValue is a characteristic value received from the peer.
type CharValue struct {
	Profile uint32 `protobuf:"varint,1,opt,name=profile,proto3" json:"profile,omitempty" cbor:"1,keyasint,omitempty"`
	Char    uint32 `protobuf:"varint,2,opt,name=char,proto3" json:"char,omitempty" cbor:"2,keyasint,omitempty"`
	Data    []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

// Reset implements proto.Message.
func (m *CharValue) Reset() { *m = CharValue{} }

// String implements proto.Message.
func (m *CharValue) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*CharValue) ProtoMessage() {}

// TransferStatus reports the firmware transfer state.
type TransferStatus struct {
	State            string  `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty" cbor:"1,keyasint,omitempty"`
	AvailableVersion string  `protobuf:"bytes,2,opt,name=available_version,json=availableVersion,proto3" json:"available_version,omitempty" cbor:"2,keyasint,omitempty"`
	RunningVersion   string  `protobuf:"bytes,3,opt,name=running_version,json=runningVersion,proto3" json:"running_version,omitempty" cbor:"3,keyasint,omitempty"`
	TotalLength      int64   `protobuf:"varint,4,opt,name=total_length,json=totalLength,proto3" json:"total_length,omitempty" cbor:"4,keyasint,omitempty"`
	Offset           int64   `protobuf:"varint,5,opt,name=offset,proto3" json:"offset,omitempty" cbor:"5,keyasint,omitempty"`
	Progress         float64 `protobuf:"fixed64,6,opt,name=progress,proto3" json:"progress,omitempty" cbor:"6,keyasint,omitempty"`
	Icon             string  `protobuf:"bytes,7,opt,name=icon,proto3" json:"icon,omitempty" cbor:"7,keyasint,omitempty"`
	Paused           bool    `protobuf:"varint,8,opt,name=paused,proto3" json:"paused,omitempty" cbor:"8,keyasint,omitempty"`
	Reason           string  `protobuf:"bytes,9,opt,name=reason,proto3" json:"reason,omitempty" cbor:"9,keyasint,omitempty"`
}

// Reset implements proto.Message.
func (m *TransferStatus) Reset() { *m = TransferStatus{} }

// String implements proto.Message.
func (m *TransferStatus) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*TransferStatus) ProtoMessage() {}

// RequestAllChars asks the peer to send every characteristic of a profile.
type RequestAllChars struct {
	Profile uint32 `protobuf:"varint,1,opt,name=profile,proto3" json:"profile,omitempty" cbor:"1,keyasint,omitempty"`
}

// Reset implements proto.Message.
func (m *RequestAllChars) Reset() { *m = RequestAllChars{} }

// String implements proto.Message.
func (m *RequestAllChars) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*RequestAllChars) ProtoMessage() {}

// Packet is the envelope of every bridge packet. Exactly one field is set.
type Packet struct {
	CharWrite       *CharWrite       `protobuf:"bytes,1,opt,name=char_write,json=charWrite,proto3" json:"char_write,omitempty" cbor:"1,keyasint,omitempty"`
	CharValue       *CharValue       `protobuf:"bytes,2,opt,name=char_value,json=charValue,proto3" json:"char_value,omitempty" cbor:"2,keyasint,omitempty"`
	TransferStatus  *TransferStatus  `protobuf:"bytes,3,opt,name=transfer_status,json=transferStatus,proto3" json:"transfer_status,omitempty" cbor:"3,keyasint,omitempty"`
	RequestAllChars *RequestAllChars `protobuf:"bytes,4,opt,name=request_all_chars,json=requestAllChars,proto3" json:"request_all_chars,omitempty" cbor:"4,keyasint,omitempty"`
}

// Reset implements proto.Message.
func (m *Packet) Reset() { *m = Packet{} }

// String implements proto.Message.
func (m *Packet) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Packet) ProtoMessage() {}

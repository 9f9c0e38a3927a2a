// Package msgs defines the messages carried over the bridges.
//
// Messages are declared with protobuf struct tags so they encode with
// github.com/golang/protobuf, and with cbor integer keys for compact
// encoding. The encoding of a bridge is selected by a Codec.
package msgs

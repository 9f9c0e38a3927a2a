// Package wire provides the frame codec of the serial link.
package wire

// The serial link is spoken between the dongle host and its companion MCU
// and focuses on recovering from noise over a point-to-point UART.
//
// Every frame is
//
//	0x5A | len | payload[len] | checksumLo | checksumHi | 0xA5
//
// where len is 1..255 and the checksum is the two's complement of the
// 16-bit sum of the payload bytes. A receiver resynchronizes by discarding
// one byte at a time until the next sync byte. Candidate frames are read
// through the ring buffer lookahead so a broken candidate costs only its
// sync byte.
//
// Application payloads are laid out as
//
//	command | profileId | charId | dataLen | data[dataLen]
//
// and every frame except an ACK is acknowledged by the receiver with
//
//	0x00 | command | profileId | charId

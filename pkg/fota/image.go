package fota

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Image layout.
const (
	// ImageLength is the length transferred to the peer: a 2 KiB header
	// and 276 KiB of application.
	ImageLength = 2*1024 + 276*1024
	// VersionOffset is where the version is stored in the image.
	VersionOffset = 0xA00
	// MagicOffset is where the magic code is stored in the image.
	MagicOffset = 0
	// MagicSize is the size of the magic code.
	MagicSize = 8
	// Magic identifies images of the peer firmware.
	Magic uint64 = 0x7E292A76747D7824
)

// ImageSource provides the bytes of the available image.
type ImageSource interface {
	// TotalLength returns the length of the image.
	TotalLength(ctx context.Context) (int64, error)
	// ReadRange reads exactly n bytes at offset.
	ReadRange(ctx context.Context, offset int64, n int) ([]byte, error)
}

// ImageInfo is what an image tells about itself.
type ImageInfo struct {
	Version Version
	Magic   uint64
}

// MagicValid tells if the image is meant for the peer.
func (i ImageInfo) MagicValid() bool {
	return i.Magic == Magic
}

// ReadImageInfo reads the version and the magic code of the image.
func ReadImageInfo(ctx context.Context, src ImageSource) (info ImageInfo, err error) {
	ver, err := src.ReadRange(ctx, VersionOffset, VersionSize)
	if err != nil {
		return info, fmt.Errorf("read version: %w", err)
	}
	if len(ver) != VersionSize {
		return info, fmt.Errorf("read version: %w", io.ErrUnexpectedEOF)
	}
	copy(info.Version[:], ver)
	magic, err := src.ReadRange(ctx, MagicOffset, MagicSize)
	if err != nil {
		return info, fmt.Errorf("read magic: %w", err)
	}
	if len(magic) != MagicSize {
		return info, fmt.Errorf("read magic: %w", io.ErrUnexpectedEOF)
	}
	info.Magic = binary.LittleEndian.Uint64(magic)
	return info, nil
}

// BytesSource is an ImageSource of an in-memory image.
type BytesSource []byte

// TotalLength implements ImageSource.
func (s BytesSource) TotalLength(context.Context) (int64, error) {
	return int64(len(s)), nil
}

// ReadRange implements ImageSource.
func (s BytesSource) ReadRange(_ context.Context, offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+int64(n) > int64(len(s)) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, s[offset:])
	return out, nil
}

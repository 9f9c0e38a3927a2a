package fota

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// VersionSize is the size of an encoded Version.
const VersionSize = 4

// Version is a firmware version: major, minor, build and revision.
type Version [VersionSize]byte

// ParseVersion parses "major.minor.build.revision".
func ParseVersion(s string) (Version, error) {
	var v Version
	fields := strings.Split(s, ".")
	if len(fields) != VersionSize {
		return v, fmt.Errorf("invalid version %q", s)
	}
	for n, field := range fields {
		val, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return v, fmt.Errorf("invalid version %q: %w", s, err)
		}
		v[n] = byte(val)
	}
	return v, nil
}

// VersionFromUint32 decodes a little endian version.
func VersionFromUint32(u uint32) Version {
	var v Version
	binary.LittleEndian.PutUint32(v[:], u)
	return v
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// Uint32 encodes the version little endian, major in the lowest byte.
func (v Version) Uint32() uint32 {
	return binary.LittleEndian.Uint32(v[:])
}

// IsZero tells if no version is known.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare compares field by field from major to revision.
func (v Version) Compare(o Version) int {
	for n := range v {
		switch {
		case v[n] > o[n]:
			return 1
		case v[n] < o[n]:
			return -1
		}
	}
	return 0
}

// NewerThan tells if v is strictly newer than o.
func (v Version) NewerThan(o Version) bool {
	return v.Compare(o) > 0
}

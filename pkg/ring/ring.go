// Package ring provides the fixed-capacity byte queue used by the serial link.
package ring

import "errors"

// MaxCapacity is the largest capacity a Buffer accepts.
const MaxCapacity = 0xffff

var (
	// ErrFull indicates no room is left for a push.
	ErrFull = errors.New("buffer full")
	// ErrEmpty indicates nothing is left to pop.
	ErrEmpty = errors.New("buffer empty")
	// ErrInvalidArgs indicates a peek beyond the stored bytes, or an
	// unusable storage size.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Status summarizes the fill level of a Buffer.
type Status int

const (
	// StatusOK means the buffer is neither empty nor full.
	StatusOK Status = iota
	// StatusEmpty means there is nothing stored.
	StatusEmpty
	// StatusFull means there is no free space.
	StatusFull
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusFull:
		return "full"
	default:
		return "ok"
	}
}

// Buffer is a circular byte queue with an independent lookahead cursor.
// Peek walks ahead of the read position without consuming anything, and
// ResetPeek rewinds the cursor back to the read position.
//
// Buffer performs no locking. Callers serialize access with their own mutex.
type Buffer struct {
	storage []byte

	writePos int
	readPos  int
	peekPos  int
	count    int
	peeked   int // bytes between readPos and peekPos
}

// New allocates a Buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, ErrInvalidArgs
	}
	return &Buffer{storage: make([]byte, capacity)}, nil
}

// NewWith creates a Buffer over caller-owned storage.
func NewWith(storage []byte) (*Buffer, error) {
	if len(storage) == 0 || len(storage) > MaxCapacity {
		return nil, ErrInvalidArgs
	}
	return &Buffer{storage: storage}, nil
}

// MustNew is New which panics on invalid capacity.
func MustNew(capacity int) *Buffer {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.storage)
}

// Len returns the number of stored bytes.
func (b *Buffer) Len() int {
	return b.count
}

// SpaceAvailable returns the number of bytes that can still be pushed.
func (b *Buffer) SpaceAvailable() int {
	return len(b.storage) - b.count
}

// Status reports whether the buffer is empty, full or in between.
func (b *Buffer) Status() Status {
	switch b.count {
	case 0:
		return StatusEmpty
	case len(b.storage):
		return StatusFull
	}
	return StatusOK
}

// Push appends one byte.
func (b *Buffer) Push(v byte) error {
	if b.count >= len(b.storage) {
		return ErrFull
	}
	b.storage[b.writePos] = v
	b.writePos = b.next(b.writePos)
	b.count++
	return nil
}

// Pop removes the oldest byte. The peek cursor never falls behind the read
// position: if it pointed at the popped byte it moves along with it.
func (b *Buffer) Pop() (byte, error) {
	if b.count == 0 {
		return 0, ErrEmpty
	}
	v := b.storage[b.readPos]
	b.readPos = b.next(b.readPos)
	b.count--
	if b.peeked > 0 {
		b.peeked--
	} else {
		b.peekPos = b.readPos
	}
	return v, nil
}

// Peek returns the byte under the lookahead cursor and advances the cursor.
// It fails once every stored byte has been peeked.
func (b *Buffer) Peek() (byte, error) {
	if b.peeked >= b.count {
		return 0, ErrInvalidArgs
	}
	v := b.storage[b.peekPos]
	b.peekPos = b.next(b.peekPos)
	b.peeked++
	return v, nil
}

// Peeked returns how many bytes the lookahead cursor is ahead of the read
// position.
func (b *Buffer) Peeked() int {
	return b.peeked
}

// ResetPeek rewinds the lookahead cursor to the read position.
func (b *Buffer) ResetPeek() {
	b.peekPos, b.peeked = b.readPos, 0
}

// Discard pops up to n bytes and returns how many were removed. The peek
// cursor is rewound afterwards.
func (b *Buffer) Discard(n int) int {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		b.ResetPeek()
		return 0
	}
	b.readPos = (b.readPos + n) % len(b.storage)
	b.count -= n
	b.ResetPeek()
	return n
}

// Reset drops everything stored.
func (b *Buffer) Reset() {
	b.writePos, b.readPos, b.peekPos, b.count, b.peeked = 0, 0, 0, 0, 0
}

func (b *Buffer) next(pos int) int {
	if pos++; pos >= len(b.storage) {
		return 0
	}
	return pos
}

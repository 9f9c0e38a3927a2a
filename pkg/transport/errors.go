package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParam indicates a payload which can't be framed.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrReservedCommand indicates an attempt to register the ACK command id.
	ErrReservedCommand = errors.New("command id reserved")
)

// CommandRangeError is returned when registering a command id beyond the
// command table.
type CommandRangeError struct {
	Command byte
	Size    int
}

// Error implements error.
func (e *CommandRangeError) Error() string {
	return fmt.Sprintf("command %d out of range [0, %d)", e.Command, e.Size)
}

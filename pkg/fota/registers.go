package fota

import (
	"errors"
	"fmt"
)

// Transfer sizes.
const (
	// BlockSize is the size of a block downloaded from the source.
	BlockSize = 2048
	// FrameSize is the largest image chunk carried by one frame.
	FrameSize = 128
)

// Chars of the peer firmware transfer profile.
const (
	CharGetVersionRunning byte = iota
	CharRecoverImageInfo
	CharConfirmedStatus
	CharWriteFrameData
	CharFinishImage
	CharIconStatus
)

// IconStatus is the transfer status shown by the peer.
type IconStatus byte

// Icon statuses.
const (
	IconNone IconStatus = iota
	IconDownloading
	IconCompleted
	IconPaused
)

func (s IconStatus) String() string {
	switch s {
	case IconDownloading:
		return "downloading"
	case IconCompleted:
		return "completed"
	case IconPaused:
		return "paused"
	default:
		return "none"
	}
}

// ConfirmStatus is the answer of the peer about installing a version.
type ConfirmStatus byte

// Confirm statuses.
const (
	ConfirmNone ConfirmStatus = iota
	ConfirmNotConfirmed
	ConfirmConfirmed
	ConfirmAborted
)

// Peer status bits, the first byte of most responses.
const (
	StatusResyncInfo  byte = 1 << 0
	StatusFailToWrite byte = 1 << 1
	StatusPowerOff    byte = 1 << 2
)

// State is the state of the workflow.
type State int

// States.
const (
	StateInit State = iota
	StateFetchAvailableVersionInfo
	StateFetchRunningVersion
	StateCompareVersions
	StateFetchTotalLength
	StateRecoverConfirmStatus
	StateFetchProgress
	StateDownloadFrame
	StateSendFrameToPeer
	StateFinish
	StateAbort
	StateSuspend
)

var stateNames = [...]string{
	"init",
	"fetch-available-version",
	"fetch-running-version",
	"compare-versions",
	"fetch-total-length",
	"recover-confirm-status",
	"fetch-progress",
	"download-frame",
	"send-frame",
	"finish",
	"abort",
	"suspend",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrBudgetExhausted indicates a state failed too many times.
	ErrBudgetExhausted = errors.New("attempts exhausted")
	// ErrImageMagic indicates the image is not meant for the peer.
	ErrImageMagic = errors.New("image magic mismatch")
	// ErrImageTooSmall indicates the image is shorter than ImageLength.
	ErrImageTooSmall = errors.New("image too small")
	// ErrUpToDate indicates the peer already runs the available version.
	ErrUpToDate = errors.New("running version up to date")
	// ErrPeerAborted indicates the peer refused the transfer.
	ErrPeerAborted = errors.New("transfer aborted by peer")
	// ErrPeerPowerOff indicates the peer is powering off.
	ErrPeerPowerOff = errors.New("peer powering off")
	// ErrPeerWrite indicates the peer failed to store a frame.
	ErrPeerWrite = errors.New("peer failed to write frame")
)

// AbortError is the reason the workflow aborted.
type AbortError struct {
	State  State
	Reason error
}

// Error implements error.
func (e *AbortError) Error() string {
	return fmt.Sprintf("abort in %s: %v", e.State, e.Reason)
}

// Unwrap returns the reason.
func (e *AbortError) Unwrap() error {
	return e.Reason
}

// budgetError is both ErrBudgetExhausted and the last failure.
type budgetError struct {
	err error
}

func (e *budgetError) Error() string {
	return ErrBudgetExhausted.Error() + ": " + e.err.Error()
}

func (e *budgetError) Is(target error) bool {
	return target == ErrBudgetExhausted
}

func (e *budgetError) Unwrap() error {
	return e.err
}

// Registers is the state of a transfer.
type Registers struct {
	State             State
	AttemptsRemaining int

	AvailableVersion Version
	RunningVersion   Version
	TotalImageLength int64

	BlockPos          uint16
	FramePos          uint8
	TotalReadBytes    int
	NextRecheckOffset int64
	OffsetWrite       int
	WriteBytes        int

	PeerStatus    byte
	ConfirmStatus ConfirmStatus
	RespBlockPos  uint16
	RespFramePos  uint8

	Icon   IconStatus
	Paused bool
	Reason string
}

// Offset is the image offset of the current block.
func (r *Registers) Offset() int64 {
	return int64(r.BlockPos) * BlockSize
}

// Progress is the transferred share of the image in percent.
func (r *Registers) Progress() float64 {
	return float64(r.Offset()) * 100 / ImageLength
}

// computeNextRecheck sets the offset at the next 10% step of progress.
func (r *Registers) computeNextRecheck() {
	next := (int64(r.Progress())/10 + 1) * 10
	r.NextRecheckOffset = next * ImageLength / 100
}

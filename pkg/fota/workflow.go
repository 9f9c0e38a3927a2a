package fota

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/stmlink/pkg/framework"
	"github.com/robotalks/stmlink/pkg/profile"
	"github.com/robotalks/stmlink/pkg/transact"
)

// Config defines the timing of the workflow.
type Config struct {
	Gate transact.Config
	// Attempts is the failure budget of a state.
	Attempts int

	StartDelay           time.Duration
	SuspendPeriod        time.Duration
	ConnectivityInterval time.Duration
	NotConfirmedWait     time.Duration
	PowerOffWait         time.Duration
	ResyncWait           time.Duration
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		Gate:                 transact.DefaultConfig(),
		Attempts:             3,
		StartDelay:           300 * time.Millisecond,
		SuspendPeriod:        time.Hour,
		ConnectivityInterval: 5 * time.Second,
		NotConfirmedWait:     3 * time.Second,
		PowerOffWait:         30 * time.Second,
		ResyncWait:           300 * time.Millisecond,
	}
}

// Connectivity tells whether the image source is reachable.
type Connectivity interface {
	Connected() bool
}

// ConnectedFunc is the func form of Connectivity.
type ConnectedFunc func() bool

// Connected implements Connectivity.
func (f ConnectedFunc) Connected() bool {
	return f()
}

// StatusSink receives the registers on every state change.
type StatusSink interface {
	TransferStatus(Registers)
}

// StatusSinkFunc is the func form of StatusSink.
type StatusSinkFunc func(Registers)

// TransferStatus implements StatusSink.
func (f StatusSinkFunc) TransferStatus(r Registers) {
	f(r)
}

// Workflow transfers the available image to the peer, block by block
// and frame by frame, resuming from the progress the peer reports.
type Workflow struct {
	// Connectivity is optional, the source is assumed reachable without it.
	Connectivity Connectivity
	// Status is optional.
	Status StatusSink

	config Config
	source ImageSource
	writer profile.CharWriter
	gate   *transact.Gate

	// guarded by gate lock
	regs      Registers
	expected  [CharIconStatus + 1]bool
	lastAbort *AbortError

	block [BlockSize]byte
	waker framework.Waker
}

// New creates a Workflow reading images from source and talking to the
// peer through writer.
func New(source ImageSource, writer profile.CharWriter, config Config) *Workflow {
	if config.Attempts <= 0 {
		config.Attempts = 1
	}
	return &Workflow{
		config: config,
		source: source,
		writer: writer,
		gate:   transact.New(config.Gate),
		regs:   Registers{AttemptsRemaining: config.Attempts},
	}
}

// Snapshot returns a copy of the registers.
func (w *Workflow) Snapshot() Registers {
	w.gate.Lock()
	defer w.gate.Unlock()
	return w.regs
}

// LastAbort returns the reason of the last abort, nil if none.
func (w *Workflow) LastAbort() *AbortError {
	w.gate.Lock()
	defer w.gate.Unlock()
	return w.lastAbort
}

// Pause stops the workflow before its next step.
func (w *Workflow) Pause() {
	var state State
	w.update(func(r *Registers) {
		r.Paused = true
		state = r.State
	})
	if state == StateDownloadFrame || state == StateSendFrameToPeer {
		w.reportIcon(IconPaused)
	}
	glog.Info("firmware transfer paused")
}

// Resume resumes a paused workflow and cuts any pending delay short.
func (w *Workflow) Resume() {
	w.update(func(r *Registers) { r.Paused = false })
	w.waker.Wake()
	glog.Info("firmware transfer resumed")
}

// Run implements framework.Runnable.
func (w *Workflow) Run(ctx context.Context) error {
	if err := framework.Sleep(ctx, w.config.StartDelay); err != nil {
		return err
	}
	w.gate.Lock()
	w.regs = Registers{AttemptsRemaining: w.config.Attempts, Paused: w.regs.Paused}
	w.gate.Unlock()
	for {
		if err := w.Step(ctx); err != nil {
			return err
		}
	}
}

// Step runs a single tick of the state machine. Only context errors are
// returned, every other failure is counted against the state budget.
func (w *Workflow) Step(ctx context.Context) error {
	r := w.Snapshot()
	if r.Paused {
		return w.delay(ctx, w.config.ConnectivityInterval)
	}
	if w.Connectivity != nil && !w.Connectivity.Connected() {
		if r.State == StateDownloadFrame || r.State == StateSendFrameToPeer {
			w.reportIcon(IconPaused)
		}
		return w.delay(ctx, w.config.ConnectivityInterval)
	}

	var err error
	switch r.State {
	case StateInit:
		w.reportIcon(IconNone)
		w.setState(StateFetchAvailableVersionInfo)
	case StateFetchAvailableVersionInfo:
		err = w.fetchAvailableVersion(ctx)
	case StateFetchRunningVersion:
		if err = w.transact(ctx, CharGetVersionRunning, nil); err == nil {
			w.setState(StateCompareVersions)
		}
	case StateCompareVersions:
		w.compareVersions(r)
	case StateFetchTotalLength:
		err = w.fetchTotalLength(ctx)
	case StateRecoverConfirmStatus:
		err = w.recoverConfirmStatus(ctx, r)
	case StateFetchProgress:
		err = w.fetchProgress(ctx, r)
	case StateDownloadFrame:
		err = w.downloadFrame(ctx, r)
	case StateSendFrameToPeer:
		err = w.sendFrame(ctx, r)
	case StateFinish:
		if err = w.writer.WriteChar(profile.STMFota, CharFinishImage, nil); err == nil {
			glog.Infof("firmware %s transferred", r.AvailableVersion)
			w.setState(StateSuspend)
		}
	case StateAbort:
		w.setState(StateSuspend)
	case StateSuspend:
		if err = w.delay(ctx, w.config.SuspendPeriod); err == nil {
			w.setState(StateFetchAvailableVersionInfo)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.fail(err)
	}
	return nil
}

func (w *Workflow) fetchAvailableVersion(ctx context.Context) error {
	info, err := ReadImageInfo(ctx, w.source)
	if err != nil {
		return err
	}
	if !info.MagicValid() {
		w.abort(ErrImageMagic)
		return nil
	}
	w.update(func(r *Registers) { r.AvailableVersion = info.Version })
	w.setState(StateFetchRunningVersion)
	return nil
}

func (w *Workflow) compareVersions(r Registers) {
	if !r.AvailableVersion.NewerThan(r.RunningVersion) {
		w.abort(fmt.Errorf("%w: available %s, running %s", ErrUpToDate, r.AvailableVersion, r.RunningVersion))
		return
	}
	glog.Infof("firmware %s available, peer runs %s", r.AvailableVersion, r.RunningVersion)
	w.setState(StateFetchTotalLength)
}

func (w *Workflow) fetchTotalLength(ctx context.Context) error {
	n, err := w.source.TotalLength(ctx)
	if err != nil {
		return err
	}
	if n < ImageLength {
		w.abort(fmt.Errorf("%w: %d bytes", ErrImageTooSmall, n))
		return nil
	}
	w.update(func(r *Registers) { r.TotalImageLength = n })
	w.setState(StateRecoverConfirmStatus)
	return nil
}

func (w *Workflow) recoverConfirmStatus(ctx context.Context, r Registers) error {
	w.update(func(r *Registers) { r.ConfirmStatus = ConfirmNone })
	if err := w.transact(ctx, CharConfirmedStatus, r.AvailableVersion[:]); err != nil {
		return err
	}
	switch w.Snapshot().ConfirmStatus {
	case ConfirmNotConfirmed:
		return w.delay(ctx, w.config.NotConfirmedWait)
	case ConfirmConfirmed:
		w.setState(StateFetchProgress)
	case ConfirmAborted:
		w.abort(ErrPeerAborted)
	}
	return nil
}

func (w *Workflow) fetchProgress(ctx context.Context, r Registers) error {
	w.update(func(r *Registers) { r.BlockPos, r.FramePos = 0, 0 })
	if err := w.transact(ctx, CharRecoverImageInfo, r.AvailableVersion[:]); err != nil {
		return err
	}
	w.update(func(r *Registers) { r.computeNextRecheck() })
	w.reportIcon(IconDownloading)
	w.setState(StateDownloadFrame)
	return nil
}

func (w *Workflow) downloadFrame(ctx context.Context, r Registers) error {
	offset := r.Offset()
	if offset >= r.NextRecheckOffset {
		// look for a newer version every 10%
		w.setState(StateFetchAvailableVersionInfo)
		return nil
	}
	if offset >= ImageLength {
		w.reportIcon(IconCompleted)
		w.setState(StateFinish)
		return nil
	}
	n := ImageLength - offset
	if n > BlockSize {
		n = BlockSize
	}
	data, err := w.source.ReadRange(ctx, offset, int(n))
	if err != nil {
		w.reportIcon(IconPaused)
		return fmt.Errorf("read block %d: %w", r.BlockPos, err)
	}
	copy(w.block[:], data)
	w.update(func(r *Registers) { r.TotalReadBytes, r.OffsetWrite = len(data), 0 })
	w.reportIcon(IconDownloading)
	w.setState(StateSendFrameToPeer)
	return nil
}

func (w *Workflow) sendFrame(ctx context.Context, r Registers) error {
	n := r.TotalReadBytes - r.OffsetWrite
	if n > FrameSize {
		n = FrameSize
	}
	if n <= 0 {
		w.setState(StateFetchProgress)
		return nil
	}
	data := make([]byte, 3+n)
	binary.LittleEndian.PutUint16(data, r.BlockPos)
	data[2] = r.FramePos
	copy(data[3:], w.block[r.OffsetWrite:r.OffsetWrite+n])
	w.update(func(r *Registers) { r.WriteBytes = n })

	if err := w.transact(ctx, CharWriteFrameData, data); err != nil {
		return err
	}
	resp := w.Snapshot()
	switch {
	case resp.PeerStatus&StatusFailToWrite != 0:
		return ErrPeerWrite
	case resp.RespBlockPos != resp.BlockPos:
		glog.Infof("peer at block %d, expected %d: resync", resp.RespBlockPos, resp.BlockPos)
		w.setState(StateFetchProgress)
	case resp.RespFramePos != resp.FramePos:
		glog.Infof("peer at frame %d, expected %d: resync frame", resp.RespFramePos, resp.FramePos)
		w.update(func(r *Registers) {
			r.FramePos = r.RespFramePos
			r.OffsetWrite = int(r.RespFramePos) * FrameSize
		})
		return w.delay(ctx, w.config.ResyncWait)
	default:
		var blockDone bool
		w.update(func(r *Registers) {
			r.AttemptsRemaining = w.config.Attempts
			if r.OffsetWrite += r.WriteBytes; r.OffsetWrite >= r.TotalReadBytes {
				r.FramePos = 0
				r.BlockPos++
				blockDone = true
			} else {
				r.FramePos++
			}
		})
		if blockDone {
			w.setState(StateDownloadFrame)
		}
	}
	return nil
}

// transact runs a request/response round-trip with the peer.
func (w *Workflow) transact(ctx context.Context, char byte, data []byte) error {
	err := w.gate.Execute(ctx, func() error {
		w.gate.Lock()
		w.expected[char] = true
		w.regs.PeerStatus = 0
		w.gate.Unlock()
		return w.writer.WriteChar(profile.STMFota, char, data)
	})
	if err != nil {
		w.gate.Lock()
		w.expected[char] = false
		w.gate.Unlock()
		return fmt.Errorf("char %d: %w", char, err)
	}
	if w.Snapshot().PeerStatus&StatusPowerOff != 0 {
		glog.Warning("peer powering off")
		if err := w.delay(ctx, w.config.PowerOffWait); err != nil {
			return err
		}
		return ErrPeerPowerOff
	}
	return nil
}

// HandleChar implements profile.CharHandler for the responses of the
// peer. Responses nobody waits for are dropped.
func (w *Workflow) HandleChar(ctx context.Context, char byte, data []byte) {
	if int(char) >= len(w.expected) {
		return
	}
	accepted := w.gate.Answer(func() bool {
		if !w.expected[char] || !w.regs.parseResponse(char, data) {
			return false
		}
		w.expected[char] = false
		return true
	})
	if !accepted {
		glog.V(2).Infof("unexpected response char %d % x", char, data)
	}
}

// parseResponse stores the content of a response.
func (r *Registers) parseResponse(char byte, data []byte) bool {
	switch char {
	case CharGetVersionRunning:
		if len(data) == 0 {
			return false
		}
		r.PeerStatus = data[0]
		if len(data) > 1 {
			copy(r.RunningVersion[:], data[1:])
		}
	case CharRecoverImageInfo:
		if len(data) > 0 {
			r.PeerStatus = data[0]
		}
		if len(data) >= 3 {
			r.BlockPos = binary.LittleEndian.Uint16(data[1:])
		}
	case CharConfirmedStatus:
		if len(data) == 0 {
			return false
		}
		r.ConfirmStatus = ConfirmStatus(data[0])
	case CharWriteFrameData:
		if len(data) == 0 {
			return false
		}
		r.PeerStatus = data[0]
		if len(data) > 1 {
			r.RespBlockPos, r.RespFramePos = 0, 0
			if len(data) >= 3 {
				r.RespBlockPos = binary.LittleEndian.Uint16(data[1:])
			}
			if len(data) >= 4 {
				r.RespFramePos = data[3]
			}
		}
	default:
		return false
	}
	return true
}

func (w *Workflow) reportIcon(icon IconStatus) {
	if err := w.writer.WriteChar(profile.STMFota, CharIconStatus, []byte{byte(icon)}); err != nil {
		glog.Warningf("report %s: %v", icon, err)
	}
	w.update(func(r *Registers) { r.Icon = icon })
}

func (w *Workflow) setState(s State) {
	w.gate.Lock()
	if w.regs.State != s {
		w.regs.State = s
		w.regs.AttemptsRemaining = w.config.Attempts
	}
	r := w.regs
	w.gate.Unlock()
	glog.V(1).Infof("firmware transfer: %s", s)
	if w.Status != nil {
		w.Status.TransferStatus(r)
	}
}

func (w *Workflow) fail(err error) {
	var exhausted bool
	var state State
	w.update(func(r *Registers) {
		r.AttemptsRemaining--
		exhausted, state = r.AttemptsRemaining <= 0, r.State
	})
	glog.Warningf("firmware transfer %s: %v", state, err)
	if exhausted {
		w.abort(&budgetError{err: err})
	}
}

func (w *Workflow) abort(reason error) {
	w.gate.Lock()
	w.lastAbort = &AbortError{State: w.regs.State, Reason: reason}
	w.regs.Reason = reason.Error()
	w.gate.Unlock()
	glog.Warningf("firmware transfer aborted: %v", reason)
	w.setState(StateAbort)
}

func (w *Workflow) update(fn func(*Registers)) {
	w.gate.Lock()
	fn(&w.regs)
	w.gate.Unlock()
}

func (w *Workflow) delay(ctx context.Context, d time.Duration) error {
	_, err := w.waker.Sleep(ctx, d)
	return err
}

package fota

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/stmlink/pkg/fota/httpsource"
	"github.com/robotalks/stmlink/pkg/profile"
	"github.com/robotalks/stmlink/pkg/transact"
)

func TestVersion(t *testing.T) {
	testCases := []struct {
		available, running string
		newer              bool
	}{
		{"1.2.0.0", "1.1.0.0", true},
		{"1.1.0.0", "1.1.0.0", false},
		{"1.0.9.9", "1.1.0.0", false},
		{"2.0.0.0", "1.255.255.255", true},
		{"1.1.0.1", "1.1.0.0", true},
	}
	for _, tc := range testCases {
		t.Run(tc.available+">"+tc.running, func(t *testing.T) {
			a, err := ParseVersion(tc.available)
			require.NoError(t, err)
			r, err := ParseVersion(tc.running)
			require.NoError(t, err)
			require.Equal(t, tc.newer, a.NewerThan(r))
			require.Equal(t, tc.available, a.String())
		})
	}

	for _, s := range []string{"", "1.2.3", "1.2.3.256", "a.b.c.d"} {
		_, err := ParseVersion(s)
		require.Error(t, err, s)
	}

	v := Version{1, 2, 3, 4}
	require.Equal(t, uint32(0x04030201), v.Uint32())
	require.Equal(t, v, VersionFromUint32(v.Uint32()))
	require.True(t, Version{}.IsZero())
}

func testImage(t *testing.T, ver Version) BytesSource {
	img := make([]byte, ImageLength)
	rand.New(rand.NewSource(3)).Read(img)
	binary.LittleEndian.PutUint64(img[MagicOffset:], Magic)
	copy(img[VersionOffset:], ver[:])
	return BytesSource(img)
}

func TestReadImageInfo(t *testing.T) {
	src := testImage(t, Version{1, 2, 0, 0})
	info, err := ReadImageInfo(context.Background(), src)
	require.NoError(t, err)
	require.True(t, info.MagicValid())
	require.Equal(t, Version{1, 2, 0, 0}, info.Version)

	_, err = ReadImageInfo(context.Background(), BytesSource(make([]byte, 16)))
	require.Error(t, err)
}

func TestNextRecheck(t *testing.T) {
	var r Registers
	r.computeNextRecheck()
	require.Equal(t, int64(ImageLength/10), r.NextRecheckOffset)
	r.BlockPos = 30 // 21.6%
	r.computeNextRecheck()
	require.Equal(t, int64(3*ImageLength/10), r.NextRecheckOffset)
}

type charWrite struct {
	char byte
	data []byte
}

// testPeer answers synchronously, as a peer which stores every frame
// written at the position it expects.
type testPeer struct {
	w        *Workflow
	running  Version
	confirm  ConfirmStatus
	silent   map[byte]bool
	status   byte
	image    []byte
	block    uint16
	frame    uint8
	frames   int
	onFrame  func(n int, block uint16, frame uint8) (uint16, uint8, bool)
	lock     sync.Mutex
	requests []charWrite
}

func newTestPeer(running Version) *testPeer {
	return &testPeer{
		running: running,
		confirm: ConfirmConfirmed,
		silent:  make(map[byte]bool),
		image:   make([]byte, ImageLength),
	}
}

func (p *testPeer) chars() (chars []byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, r := range p.requests {
		chars = append(chars, r.char)
	}
	return
}

func (p *testPeer) WriteChar(prof, char byte, data []byte) error {
	if prof != profile.STMFota {
		return errors.New("unexpected profile")
	}
	p.lock.Lock()
	p.requests = append(p.requests, charWrite{char, append([]byte(nil), data...)})
	p.lock.Unlock()
	if p.silent[char] {
		return nil
	}
	var resp []byte
	switch char {
	case CharGetVersionRunning:
		resp = append([]byte{p.status}, p.running[:]...)
	case CharConfirmedStatus:
		resp = []byte{byte(p.confirm)}
	case CharRecoverImageInfo:
		resp = []byte{p.status, byte(p.block), byte(p.block >> 8)}
	case CharWriteFrameData:
		block, frame := binary.LittleEndian.Uint16(data), data[2]
		p.frames++
		if p.onFrame != nil {
			if rb, rf, ok := p.onFrame(p.frames, block, frame); ok {
				resp = []byte{p.status, byte(rb), byte(rb >> 8), rf}
				break
			}
		}
		if block == p.block && frame == p.frame {
			off := int(block)*BlockSize + int(frame)*FrameSize
			copy(p.image[off:], data[3:])
			if p.frame++; (int(p.frame)*FrameSize) >= BlockSize || off+len(data)-3 >= ImageLength {
				p.block++
				p.frame = 0
			}
		}
		resp = []byte{p.status, byte(block), byte(block >> 8), frame}
	default:
		return nil
	}
	p.w.HandleChar(context.Background(), char, resp)
	return nil
}

func testConfig() Config {
	return Config{
		Gate:                 transact.Config{AnswerTimeout: 20 * time.Millisecond},
		Attempts:             3,
		SuspendPeriod:        time.Hour,
		ConnectivityInterval: time.Millisecond,
		NotConfirmedWait:     time.Millisecond,
		PowerOffWait:         time.Millisecond,
		ResyncWait:           time.Millisecond,
	}
}

func newTestWorkflow(t *testing.T, available, running Version) (*Workflow, *testPeer, BytesSource) {
	src := testImage(t, available)
	peer := newTestPeer(running)
	w := New(src, peer, testConfig())
	peer.w = w
	return w, peer, src
}

func runUntil(t *testing.T, w *Workflow, done func(Registers) bool) Registers {
	ctx := context.Background()
	for i := 0; i < 100000; i++ {
		if r := w.Snapshot(); done(r) {
			return r
		}
		require.NoError(t, w.Step(ctx))
	}
	t.Fatal("workflow did not reach the expected state")
	return Registers{}
}

func inState(s State) func(Registers) bool {
	return func(r Registers) bool { return r.State == s }
}

func TestFullTransfer(t *testing.T) {
	w, peer, src := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	var states []State
	w.Status = StatusSinkFunc(func(r Registers) { states = append(states, r.State) })

	r := runUntil(t, w, inState(StateSuspend))
	require.Nil(t, w.LastAbort())
	require.Equal(t, []byte(src[:ImageLength]), peer.image)
	require.Equal(t, IconCompleted, r.Icon)
	require.Equal(t, uint16(ImageLength/BlockSize), r.BlockPos)
	require.Equal(t, Version{1, 2, 0, 0}, r.AvailableVersion)

	chars := peer.chars()
	require.Equal(t, CharIconStatus, chars[0])
	require.Equal(t, CharFinishImage, chars[len(chars)-1])
	// version rechecked at every 10% of progress
	rechecks := 0
	for _, s := range states {
		if s == StateFetchAvailableVersionInfo {
			rechecks++
		}
	}
	require.True(t, rechecks >= 10, "rechecks %d", rechecks)
}

func TestResumeFromPeerProgress(t *testing.T) {
	w, peer, src := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	peer.block = 100
	runUntil(t, w, inState(StateSuspend))
	require.Nil(t, w.LastAbort())
	require.Equal(t, []byte(src[100*BlockSize:ImageLength]), peer.image[100*BlockSize:])
	require.Equal(t, make([]byte, 100*BlockSize), peer.image[:100*BlockSize])
}

func TestNothingToDo(t *testing.T) {
	w, peer, _ := newTestWorkflow(t, Version{1, 1, 0, 0}, Version{1, 1, 0, 0})
	runUntil(t, w, inState(StateSuspend))
	require.True(t, errors.Is(w.LastAbort(), ErrUpToDate))
	require.Equal(t, []byte{CharIconStatus, CharGetVersionRunning}, peer.chars())
}

func TestBadMagic(t *testing.T) {
	w, peer, src := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	src[0] ^= 0xff
	runUntil(t, w, inState(StateSuspend))
	abort := w.LastAbort()
	require.True(t, errors.Is(abort, ErrImageMagic))
	require.Equal(t, StateFetchAvailableVersionInfo, abort.State)
	require.Equal(t, []byte{CharIconStatus}, peer.chars())
}

func TestImageTooSmall(t *testing.T) {
	src := testImage(t, Version{1, 2, 0, 0})[:ImageLength-1]
	peer := newTestPeer(Version{1, 1, 0, 0})
	w := New(src, peer, testConfig())
	peer.w = w
	runUntil(t, w, inState(StateSuspend))
	require.True(t, errors.Is(w.LastAbort(), ErrImageTooSmall))
}

func TestConfirmStatus(t *testing.T) {
	testCases := []struct {
		name    string
		confirm ConfirmStatus
		next    State
	}{
		{"confirmed", ConfirmConfirmed, StateFetchProgress},
		{"aborted", ConfirmAborted, StateAbort},
		{"not confirmed", ConfirmNotConfirmed, StateRecoverConfirmStatus},
		{"none", ConfirmNone, StateRecoverConfirmStatus},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
			peer.confirm = tc.confirm
			runUntil(t, w, inState(StateRecoverConfirmStatus))
			require.NoError(t, w.Step(context.Background()))
			r := w.Snapshot()
			require.Equal(t, tc.next, r.State)
			// re-asking is not a failure
			require.Equal(t, 3, r.AttemptsRemaining)
			if tc.confirm == ConfirmAborted {
				require.True(t, errors.Is(w.LastAbort(), ErrPeerAborted))
			}
		})
	}
}

func TestStaleBlockResync(t *testing.T) {
	w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	peer.onFrame = func(n int, block uint16, frame uint8) (uint16, uint8, bool) {
		if n == 3 {
			return block + 5, 0, true
		}
		return 0, 0, false
	}
	runUntil(t, w, func(r Registers) bool { return peer.frames == 3 })
	r := w.Snapshot()
	require.Equal(t, StateFetchProgress, r.State)
	require.Equal(t, uint8(2), r.FramePos)
	require.Equal(t, uint16(0), r.BlockPos)

	// the full resync asks the peer again and restarts the block
	require.NoError(t, w.Step(context.Background()))
	r = w.Snapshot()
	require.Equal(t, StateDownloadFrame, r.State)
	require.Equal(t, uint8(0), r.FramePos)
}

func TestPartialResync(t *testing.T) {
	w, peer, src := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	peer.onFrame = func(n int, block uint16, frame uint8) (uint16, uint8, bool) {
		if n == 4 {
			// the peer lost frame 2
			peer.frame = 2
			return block, 2, true
		}
		return 0, 0, false
	}
	runUntil(t, w, func(r Registers) bool { return peer.frames == 4 })
	r := w.Snapshot()
	require.Equal(t, StateSendFrameToPeer, r.State)
	require.Equal(t, uint8(2), r.FramePos)
	require.Equal(t, 2*FrameSize, r.OffsetWrite)

	runUntil(t, w, func(r Registers) bool { return r.BlockPos == 1 })
	require.Equal(t, []byte(src[:BlockSize]), peer.image[:BlockSize])
}

func TestNoAnswerExhaustsBudget(t *testing.T) {
	w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	peer.silent[CharGetVersionRunning] = true
	runUntil(t, w, inState(StateAbort))
	abort := w.LastAbort()
	require.True(t, errors.Is(abort, ErrBudgetExhausted))
	require.Equal(t, StateFetchRunningVersion, abort.State)
	require.False(t, w.gate.Pending())
	requests := 0
	for _, c := range peer.chars() {
		if c == CharGetVersionRunning {
			requests++
		}
	}
	require.Equal(t, 3, requests)
}

func TestPowerOff(t *testing.T) {
	w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	peer.status = StatusPowerOff
	runUntil(t, w, inState(StateAbort))
	require.True(t, errors.Is(w.LastAbort(), ErrPeerPowerOff))
}

func TestUnexpectedResponse(t *testing.T) {
	w, _, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	w.HandleChar(context.Background(), CharGetVersionRunning, []byte{0, 9, 9, 9, 9})
	w.HandleChar(context.Background(), 200, []byte{0})
	require.True(t, w.Snapshot().RunningVersion.IsZero())
}

func TestConnectivityLost(t *testing.T) {
	w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	runUntil(t, w, inState(StateDownloadFrame))
	connected := false
	w.Connectivity = ConnectedFunc(func() bool { return connected })
	before := len(peer.chars())
	require.NoError(t, w.Step(context.Background()))
	r := w.Snapshot()
	require.Equal(t, StateDownloadFrame, r.State)
	require.Equal(t, IconPaused, r.Icon)
	require.Equal(t, before+1, len(peer.chars()))

	connected = true
	require.NoError(t, w.Step(context.Background()))
	require.Equal(t, StateSendFrameToPeer, w.Snapshot().State)
}

type failOnceTransport struct {
	calls int32
}

func (f *failOnceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 {
		return nil, errors.New("network is unreachable")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestHTTPSourceRecovers(t *testing.T) {
	img := testImage(t, Version{1, 2, 0, 0})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "image.bin", time.Time{}, bytes.NewReader(img))
	}))
	defer srv.Close()
	src := httpsource.New(srv.URL)
	src.Client = &http.Client{Transport: &failOnceTransport{}}
	peer := newTestPeer(Version{1, 1, 0, 0})
	w := New(src, peer, testConfig())
	w.Connectivity = src
	peer.w = w

	r := runUntil(t, w, func(r Registers) bool { return r.State == StateFetchTotalLength })
	require.Equal(t, Version{1, 2, 0, 0}, r.AvailableVersion)
	require.True(t, src.Connected())
	r = runUntil(t, w, inState(StateRecoverConfirmStatus))
	require.Equal(t, int64(len(img)), r.TotalImageLength)
}

func TestPauseResume(t *testing.T) {
	w, _, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
	w.config.ConnectivityInterval = time.Hour
	w.Pause()
	done := make(chan error, 1)
	go func() { done <- w.Step(context.Background()) }()
	select {
	case <-done:
		t.Fatal("paused step returned")
	case <-time.After(20 * time.Millisecond):
	}
	w.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("resume did not wake the workflow")
	}
	require.Equal(t, StateInit, w.Snapshot().State)
	require.NoError(t, w.Step(context.Background()))
	require.Equal(t, StateFetchAvailableVersionInfo, w.Snapshot().State)
}

func TestPauseReportsIcon(t *testing.T) {
	testCases := []struct {
		name     string
		state    State
		reported bool
	}{
		{"idle", StateInit, false},
		{"downloading", StateDownloadFrame, true},
		{"sending", StateSendFrameToPeer, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, peer, _ := newTestWorkflow(t, Version{1, 2, 0, 0}, Version{1, 1, 0, 0})
			runUntil(t, w, inState(tc.state))
			before := len(peer.chars())
			w.Pause()
			peer.lock.Lock()
			requests := peer.requests[before:]
			peer.lock.Unlock()
			if !tc.reported {
				require.Empty(t, requests)
				return
			}
			require.Equal(t, []charWrite{{CharIconStatus, []byte{byte(IconPaused)}}}, requests)
			require.Equal(t, IconPaused, w.Snapshot().Icon)
		})
	}
}

func TestRunCanceled(t *testing.T) {
	w, _, _ := newTestWorkflow(t, Version{1, 1, 0, 0}, Version{1, 1, 0, 0})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("workflow not stopped")
	}
}

package transact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testGate() *Gate {
	return New(Config{SettleDelay: time.Millisecond, AnswerTimeout: 50 * time.Millisecond})
}

func TestExecuteAnswered(t *testing.T) {
	g := testGate()
	var value int
	err := g.Execute(context.Background(), func() error {
		go func() {
			time.Sleep(5 * time.Millisecond)
			require.False(t, g.Answer(func() bool { return false }))
			require.True(t, g.Answer(func() bool {
				value = 7
				return true
			}))
		}()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, value)
	require.False(t, g.Pending())
}

func TestExecuteAnswerWakesEarly(t *testing.T) {
	g := testGate()
	g.AnswerTimeout = time.Hour
	start := time.Now()
	require.NoError(t, g.Execute(context.Background(), func() error {
		go g.Answer(nil)
		return nil
	}))
	require.True(t, time.Since(start) < time.Minute)
}

func TestExecuteNoAnswer(t *testing.T) {
	g := testGate()
	sends := 0
	send := func() error {
		sends++
		return nil
	}
	require.Equal(t, ErrNoAnswer, g.Execute(context.Background(), send))
	require.False(t, g.Pending())
	// a late answer is ignored
	require.False(t, g.Answer(nil))

	// the retry sends again
	require.Equal(t, ErrNoAnswer, g.Execute(context.Background(), send))
	require.Equal(t, 2, sends)
}

func TestExecuteSendFailure(t *testing.T) {
	g := testGate()
	failure := errors.New("queue full")
	err := g.Execute(context.Background(), func() error { return failure })
	require.True(t, errors.Is(err, ErrSendFailed))
	require.False(t, g.Pending())
	require.False(t, g.Answer(nil))
}

func TestExecuteCanceled(t *testing.T) {
	g := testGate()
	g.AnswerTimeout = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	err := g.Execute(ctx, func() error {
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
		return nil
	})
	require.Equal(t, context.Canceled, err)
	// the request stays outstanding, the next Execute only waits
	require.True(t, g.Pending())
	require.True(t, g.Answer(nil))
	require.NoError(t, g.Execute(context.Background(), func() error {
		t.Fatal("unexpected send")
		return nil
	}))
}

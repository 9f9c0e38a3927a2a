package ring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(0)
	require.Equal(t, ErrInvalidArgs, err)
	_, err = New(MaxCapacity + 1)
	require.Equal(t, ErrInvalidArgs, err)
	_, err = NewWith(nil)
	require.Equal(t, ErrInvalidArgs, err)

	storage := make([]byte, 4)
	b, err := NewWith(storage)
	require.NoError(t, err)
	require.Equal(t, 4, b.Cap())
	require.NoError(t, b.Push(7))
	require.Equal(t, byte(7), storage[0])
}

func TestPushPop(t *testing.T) {
	b := MustNew(3)
	require.Equal(t, StatusEmpty, b.Status())

	_, err := b.Pop()
	require.Equal(t, ErrEmpty, err)

	for i := byte(1); i <= 3; i++ {
		require.NoError(t, b.Push(i))
	}
	require.Equal(t, StatusFull, b.Status())
	require.Equal(t, ErrFull, b.Push(4))
	require.Equal(t, 0, b.SpaceAvailable())

	v, err := b.Pop()
	require.NoError(t, err)
	require.Equal(t, byte(1), v)
	require.Equal(t, StatusOK, b.Status())

	// wrap around
	require.NoError(t, b.Push(4))
	for _, expected := range []byte{2, 3, 4} {
		v, err = b.Pop()
		require.NoError(t, err)
		require.Equal(t, expected, v)
	}
	require.Equal(t, StatusEmpty, b.Status())
}

func TestPeek(t *testing.T) {
	b := MustNew(4)
	_, err := b.Peek()
	require.Equal(t, ErrInvalidArgs, err)

	for _, v := range []byte{10, 20, 30} {
		require.NoError(t, b.Push(v))
	}
	for _, expected := range []byte{10, 20, 30} {
		v, err := b.Peek()
		require.NoError(t, err)
		require.Equal(t, expected, v)
		require.Equal(t, 3, b.Len())
	}
	_, err = b.Peek()
	require.Equal(t, ErrInvalidArgs, err)

	b.ResetPeek()
	v, err := b.Peek()
	require.NoError(t, err)
	require.Equal(t, byte(10), v)

	// popping behind the cursor keeps it in place
	v, err = b.Pop()
	require.NoError(t, err)
	require.Equal(t, byte(10), v)
	v, err = b.Peek()
	require.NoError(t, err)
	require.Equal(t, byte(20), v)
	require.Equal(t, 1, b.Peeked())

	// popping at the cursor drags it along
	b.ResetPeek()
	_, err = b.Pop()
	require.NoError(t, err)
	v, err = b.Peek()
	require.NoError(t, err)
	require.Equal(t, byte(30), v)
}

func TestDiscard(t *testing.T) {
	b := MustNew(4)
	for _, v := range []byte{1, 2, 3} {
		require.NoError(t, b.Push(v))
	}
	_, err := b.Peek()
	require.NoError(t, err)
	require.Equal(t, 2, b.Discard(2))
	require.Equal(t, 0, b.Peeked())
	v, err := b.Peek()
	require.NoError(t, err)
	require.Equal(t, byte(3), v)
	require.Equal(t, 1, b.Discard(5))
	require.Equal(t, StatusEmpty, b.Status())

	b.Reset()
	require.Equal(t, 4, b.SpaceAvailable())
}

func TestRandomSequence(t *testing.T) {
	const capacity = 37
	r := rand.New(rand.NewSource(1))
	b := MustNew(capacity)
	var model []byte
	for step := 0; step < 5000; step++ {
		switch r.Intn(3) {
		case 0, 1:
			v := byte(r.Intn(256))
			err := b.Push(v)
			if len(model) == capacity {
				require.Equal(t, ErrFull, err)
			} else {
				require.NoError(t, err)
				model = append(model, v)
			}
		case 2:
			v, err := b.Pop()
			if len(model) == 0 {
				require.Equal(t, ErrEmpty, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, model[0], v)
				model = model[1:]
			}
		}
		require.Equal(t, len(model), b.Len())
		require.True(t, b.Len() >= 0 && b.Len() <= capacity)

		if step%97 == 0 {
			// ResetPeek followed by Len peeks reproduces the next pops.
			b.ResetPeek()
			count := b.Len()
			peeked := make([]byte, 0, count)
			for i := 0; i < count; i++ {
				v, err := b.Peek()
				require.NoError(t, err)
				peeked = append(peeked, v)
			}
			require.Equal(t, count, b.Len())
			require.Equal(t, len(model), len(peeked))
			if count > 0 {
				require.Equal(t, model, peeked)
			}
			b.ResetPeek()
		}
	}
}

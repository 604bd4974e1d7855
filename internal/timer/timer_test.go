package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_ElapsedBeforeStop(t *testing.T) {
	tm := Start()
	time.Sleep(2 * time.Millisecond)

	require.False(t, tm.Stopped())
	first := tm.Elapsed()
	assert.GreaterOrEqual(t, first, 2*time.Millisecond)

	second := tm.Elapsed()
	assert.GreaterOrEqual(t, second, first, "running timer must be monotonic")
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	tm := Start()
	time.Sleep(time.Millisecond)

	d1 := tm.Stop()
	time.Sleep(2 * time.Millisecond)
	d2 := tm.Stop()

	assert.True(t, tm.Stopped())
	assert.Equal(t, d1, d2)
	assert.Equal(t, d1, tm.Elapsed())
	assert.InDelta(t, float64(d1)/float64(time.Millisecond), tm.Milliseconds(), 1e-9)
}

func TestTrack_RecordsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	elapsed, err := Track(func() error {
		time.Sleep(time.Millisecond)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, elapsed, time.Millisecond)
}

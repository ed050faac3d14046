package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeToIndex_InverseOfIndexToTime(t *testing.T) {
	for _, fps := range []float64{25, 29.97, 30, 2, 60} {
		frames := FrameCount(600, fps)
		for i := 0; i < frames; i++ {
			got := TimeToIndex(IndexToTime(i, fps), fps)
			if got != i {
				t.Fatalf("fps=%v index=%d round-tripped to %d", fps, i, got)
			}
		}
	}
}

func TestIndexToTime_Monotonic(t *testing.T) {
	prev := -1.0
	for i := 0; i < 1000; i++ {
		cur := IndexToTime(i, 25)
		assert.Greater(t, cur, prev)
		prev = cur
	}
}

func TestTimeToIndex_Floor(t *testing.T) {
	assert.Equal(t, 0, TimeToIndex(0, 25))
	assert.Equal(t, 0, TimeToIndex(0.039, 25))
	assert.Equal(t, 1, TimeToIndex(0.04, 25))
	assert.Equal(t, 25, TimeToIndex(1.0, 25))
	assert.Equal(t, 0, TimeToIndex(-3, 25))
	assert.Equal(t, 0, TimeToIndex(1, 0))
}

func TestFrameCount(t *testing.T) {
	assert.Equal(t, 6, FrameCount(3.0, 2))
	assert.Equal(t, 120, FrameCount(4.8, 25))
	assert.Equal(t, 301, FrameCount(10.02, 30))
	assert.Equal(t, 0, FrameCount(0, 25))
}

package extraction

import (
	"github.com/MimeLyc/video-annotator/internal/timecode"
)

// fifo is a strict first-in first-out queue of frame indices.
type fifo struct {
	items []int
	head  int
}

func newFIFO(items []int) *fifo {
	return &fifo{items: append([]int(nil), items...)}
}

func (q *fifo) push(index int) {
	q.items = append(q.items, index)
}

func (q *fifo) pop() (int, bool) {
	if q.head >= len(q.items) {
		return 0, false
	}
	index := q.items[q.head]
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return index, true
}

func (q *fifo) len() int {
	return len(q.items) - q.head
}

func (q *fifo) contains(index int) bool {
	for _, item := range q.items[q.head:] {
		if item == index {
			return true
		}
	}
	return false
}

func (q *fifo) snapshot() []int {
	return append([]int(nil), q.items[q.head:]...)
}

// Keyframes lists every stride-th frame index; index 0 is always present.
func Keyframes(frames, stride int) []int {
	if stride <= 0 {
		stride = DefaultKeyframeStride
	}
	ret := []int{0}
	for i := stride; i < frames; i += stride {
		ret = append(ret, i)
	}
	return ret
}

// PriorityQueue holds every keyframe except 0, which the initial seek to
// time zero captures.
func PriorityQueue(keyframes []int) []int {
	ret := make([]int, 0, len(keyframes))
	for _, k := range keyframes {
		if k != 0 {
			ret = append(ret, k)
		}
	}
	return ret
}

// BackgroundQueue samples one frame per whole second first and then every
// remaining 1/fps offset. Indices already sampled by an earlier pass or in
// the keyframe list are not repeated.
func BackgroundQueue(duration, fps float64, frames int, keyframes []int) []int {
	if fps <= 0 || frames <= 0 {
		return nil
	}
	seen := make(map[int]struct{}, frames)
	for _, k := range keyframes {
		seen[k] = struct{}{}
	}

	ret := make([]int, 0, frames)
	add := func(index int) {
		if index <= 0 || index >= frames {
			return
		}
		if _, ok := seen[index]; ok {
			return
		}
		seen[index] = struct{}{}
		ret = append(ret, index)
	}

	for sec := 1; float64(sec) < duration; sec++ {
		add(timecode.TimeToIndex(float64(sec), fps))
	}
	for k := 1; k < frames; k++ {
		t := timecode.IndexToTime(k, fps)
		if t >= duration {
			break
		}
		add(timecode.TimeToIndex(t, fps))
	}
	return ret
}

// Package timecode converts between media timestamps and frame indices.
package timecode

import "math"

// epsilon absorbs float error when a seek lands exactly on a frame boundary,
// e.g. 3/25*25 == 2.9999999999999996.
const epsilon = 1e-6

// TimeToIndex returns the frame index shown at the given time.
func TimeToIndex(seconds, fps float64) int {
	if fps <= 0 || seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int(math.Floor(seconds*fps + epsilon))
}

// IndexToTime returns the time at which the frame starts.
func IndexToTime(index int, fps float64) float64 {
	if fps <= 0 || index <= 0 {
		return 0
	}
	return float64(index) / fps
}

// FrameCount is the number of addressable frames for a duration.
func FrameCount(duration, fps float64) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(duration * fps))
}

package extraction

import (
	"errors"

	"github.com/MimeLyc/video-annotator/internal/framecache"
)

// DefaultKeyframeStride is the spacing of navigation keyframes in frames.
const DefaultKeyframeStride = 50

var ErrNoFPS = errors.New("extraction: fps must be positive")

// Video describes the loaded media. All fields are fixed once loaded.
type Video struct {
	Src      string  `json:"src"`
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Frames   int     `json:"frames"`
}

type State string

const (
	StateIdle     State = "idle"
	StateLoaded   State = "loaded"
	StateSeeking  State = "seeking"
	StateCaptured State = "captured"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

type Config struct {
	Src   string
	FPS   float64
	Debug bool // skips background pre-fetch

	KeyframeStride int

	// Values already fixed by configuration; zero means take them from the
	// media metadata.
	Duration float64
	Width    int
	Height   int

	// Keyframes, when set, replaces the computed keyframe list.
	Keyframes []int
}

// Loaded is handed to the owner once metadata is known and before the first
// seek is issued.
type Loaded struct {
	Video     Video
	Keyframes []int
	Cache     *framecache.Cache
}

type Status struct {
	State      State `json:"state"`
	Current    int   `json:"current"`
	Priority   int   `json:"priority"`
	Background int   `json:"background"`
	Captured   int   `json:"captured"`
	Duplicates int   `json:"duplicates"`
}

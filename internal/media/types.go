package media

import (
	"context"
	"errors"
)

// ErrDecode marks failures of the underlying decoder. The extraction
// scheduler treats any error wrapping it as fatal for the video.
var ErrDecode = errors.New("media: decode error")

// Metadata is what becomes known once the media resource has loaded.
type Metadata struct {
	Duration float64 // seconds
	Width    int
	Height   int
}

// Player is a single decodable media resource driven by seeks. Calls are
// never issued concurrently; every Seek completes before the next begins.
type Player interface {
	// Load opens the resource and reports its metadata.
	Load(ctx context.Context) (Metadata, error)
	// Seek moves to the requested time and reports the time of the frame the
	// decoder actually landed on, which may differ from the request.
	Seek(ctx context.Context, seconds float64) (float64, error)
	// Capture renders the frame at the current position at native size and
	// returns it encoded as JPEG.
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener creates a Player for a source path or URL.
type Opener func(src string) (Player, error)

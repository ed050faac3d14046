package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

type ffmpegOptions struct {
	ffmpegCmd  string
	ffprobeCmd string
	quality    int
}

type Option func(*ffmpegOptions)

func WithBinaries(ffmpegCmd, ffprobeCmd string) Option {
	return func(o *ffmpegOptions) {
		if ffmpegCmd != "" {
			o.ffmpegCmd = ffmpegCmd
		}
		if ffprobeCmd != "" {
			o.ffprobeCmd = ffprobeCmd
		}
	}
}

// WithJPEGQuality sets the mjpeg qscale (2 best .. 31 worst).
func WithJPEGQuality(q int) Option {
	return func(o *ffmpegOptions) {
		if q >= 2 && q <= 31 {
			o.quality = q
		}
	}
}

// ffmpeg decodes one frame per seek by running ffmpeg with an input-side
// seek; the showinfo filter reports the pts of the frame it landed on.
type ffmpeg struct {
	src  string
	opts ffmpegOptions

	current []byte
}

func NewFfmpeg(src string, opts ...Option) *ffmpeg {
	o := ffmpegOptions{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		quality:    3,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &ffmpeg{src: src, opts: o}
}

// NewOpener returns an Opener producing ffmpeg-backed players.
func NewOpener(opts ...Option) Opener {
	return func(src string) (Player, error) {
		if strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("media source is required")
		}
		return NewFfmpeg(src, opts...), nil
	}
}

func (ff *ffmpeg) Load(ctx context.Context) (Metadata, error) {
	cmdPath, err := exec.LookPath(ff.opts.ffprobeCmd)
	if err != nil {
		return Metadata{}, err
	}
	cmd := exec.CommandContext(ctx, cmdPath, ff.probeArgs()...)
	output, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: ffprobe %s: %v", ErrDecode, ff.src, err)
	}
	return parseProbe(output)
}

func (ff *ffmpeg) Seek(ctx context.Context, seconds float64) (float64, error) {
	cmdPath, err := exec.LookPath(ff.opts.ffmpegCmd)
	if err != nil {
		return 0, err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.seekArgs(seconds)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: ffmpeg seek %.3fs: %v: %s", ErrDecode, seconds, err, lastLine(stderr.String()))
	}
	landed, err := parseLandedTime(stderr.String())
	if err != nil {
		return 0, err
	}
	if stdout.Len() == 0 {
		return 0, fmt.Errorf("%w: no frame decoded at %.3fs", ErrDecode, seconds)
	}
	ff.current = stdout.Bytes()
	return landed, nil
}

func (ff *ffmpeg) Capture(_ context.Context) ([]byte, error) {
	if len(ff.current) == 0 {
		return nil, fmt.Errorf("%w: no decoded frame to capture", ErrDecode)
	}
	return ff.current, nil
}

func (ff *ffmpeg) Close() error {
	ff.current = nil
	return nil
}

func (ff *ffmpeg) probeArgs() []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		ff.src,
	}
}

func (ff *ffmpeg) seekArgs(seconds float64) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-ss", strconv.FormatFloat(seconds, 'f', 6, 64),
		"-copyts", // keep source timestamps so showinfo reports absolute pts_time
		"-i", ff.src,
		"-frames:v", "1",
		"-vf", "showinfo",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(ff.opts.quality),
		"pipe:1",
	}
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(output []byte) (Metadata, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return Metadata{}, fmt.Errorf("%w: parse ffprobe output: %v", ErrDecode, err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		durationStr := probe.Format.Duration
		if durationStr == "" {
			durationStr = stream.Duration
		}
		duration, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: parse duration %q: %v", ErrDecode, durationStr, err)
		}
		return Metadata{
			Duration: duration,
			Width:    stream.Width,
			Height:   stream.Height,
		}, nil
	}
	return Metadata{}, fmt.Errorf("%w: no video stream", ErrDecode)
}

var ptsTimeRe = regexp.MustCompile(`pts_time:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

func parseLandedTime(stderr string) (float64, error) {
	matches := ptsTimeRe.FindStringSubmatch(stderr)
	if len(matches) != 2 {
		return 0, fmt.Errorf("%w: landed time not reported", ErrDecode)
	}
	return strconv.ParseFloat(matches[1], 64)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

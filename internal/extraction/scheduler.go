// Package extraction drives a single media player through sequential seeks
// and captures one raster per landing position into a frame cache.
//
// Frames in the priority queue (keyframes and frames requested while being
// viewed) are always captured before any background pre-fetch. Seeks are
// strictly serialised: the next one is issued only after the previous one
// landed and its frame was captured.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/video-annotator/internal/framecache"
	"github.com/MimeLyc/video-annotator/internal/media"
	"github.com/MimeLyc/video-annotator/internal/metrics"
	"github.com/MimeLyc/video-annotator/internal/timecode"
	"github.com/MimeLyc/video-annotator/pkg/log"
)

const (
	queueInitial    = "initial"
	queuePriority   = "priority"
	queueBackground = "background"
)

type Scheduler struct {
	player   media.Player
	cfg      Config
	onLoaded func(Loaded)
	logger   *log.Logger

	// captureHook observes every capture; tests use it to record order.
	captureHook func(index int)

	wake chan struct{}

	mu         sync.Mutex
	state      State
	video      Video
	cache      *framecache.Cache
	priority   *fifo
	background *fifo
	current    int
	captured   int
	duplicates int
}

type SchedulerOption func(*Scheduler)

// WithCaptureHook registers a callback invoked after each new capture.
func WithCaptureHook(hook func(index int)) SchedulerOption {
	return func(s *Scheduler) {
		s.captureHook = hook
	}
}

func NewScheduler(player media.Player, cfg Config, onLoaded func(Loaded), opts ...SchedulerOption) *Scheduler {
	if cfg.KeyframeStride <= 0 {
		cfg.KeyframeStride = DefaultKeyframeStride
	}
	s := &Scheduler{
		player:     player,
		cfg:        cfg,
		onLoaded:   onLoaded,
		logger:     log.With("video", cfg.Src),
		wake:       make(chan struct{}, 1),
		state:      StateIdle,
		priority:   newFIFO(nil),
		background: newFIFO(nil),
		current:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loads the media and keeps seeking until both queues are drained, then
// waits idle for Prioritize requests. It returns when ctx is cancelled or on
// the first decode error, which is fatal for the video.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.FPS <= 0 {
		s.setState(StateFailed)
		return ErrNoFPS
	}

	meta, err := s.player.Load(ctx)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("load media: %w", err))
	}
	s.handleLoaded(meta)

	target, queue := 0.0, queueInitial
	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateStopped)
			return err
		}

		s.setState(StateSeeking)
		metrics.SeeksTotal.WithLabelValues(queue).Inc()
		started := time.Now()
		landed, err := s.player.Seek(ctx, target)
		if err != nil {
			return s.fail(ctx, fmt.Errorf("seek to %.3fs: %w", target, err))
		}
		if err := s.handleSeeked(ctx, landed); err != nil {
			return s.fail(ctx, err)
		}
		metrics.CaptureDuration.Observe(time.Since(started).Seconds())

		next, from, ok := s.next()
		for !ok {
			s.setState(StateIdle)
			select {
			case <-ctx.Done():
				s.setState(StateStopped)
				return ctx.Err()
			case <-s.wake:
			}
			next, from, ok = s.next()
		}
		target, queue = timecode.IndexToTime(next, s.cfg.FPS), from
	}
}

// Prioritize asks for a frame ahead of background work. It is a no-op when
// the frame is cached, already queued for priority, or out of range.
func (s *Scheduler) Prioritize(index int) bool {
	s.mu.Lock()
	if s.cache == nil || index < 0 || index >= s.video.Frames ||
		s.cache.Has(index) || s.priority.contains(index) || index == s.current {
		s.mu.Unlock()
		return false
	}
	s.priority.push(index)
	metrics.QueueDepth.WithLabelValues(queuePriority).Set(float64(s.priority.len()))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:      s.state,
		Current:    s.current,
		Priority:   s.priority.len(),
		Background: s.background.len(),
		Captured:   s.captured,
		Duplicates: s.duplicates,
	}
}

// Queues returns the pending priority and background indices.
func (s *Scheduler) Queues() (priority, background []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priority.snapshot(), s.background.snapshot()
}

func (s *Scheduler) handleLoaded(meta media.Metadata) {
	video := Video{
		Src:      s.cfg.Src,
		Duration: s.cfg.Duration,
		FPS:      s.cfg.FPS,
		Width:    s.cfg.Width,
		Height:   s.cfg.Height,
	}
	if video.Duration <= 0 {
		video.Duration = meta.Duration
	}
	if video.Width <= 0 {
		video.Width = meta.Width
	}
	if video.Height <= 0 {
		video.Height = meta.Height
	}
	video.Frames = timecode.FrameCount(video.Duration, video.FPS)

	keyframes := s.cfg.Keyframes
	if len(keyframes) == 0 {
		keyframes = Keyframes(video.Frames, s.cfg.KeyframeStride)
	}
	keyframes = append([]int(nil), keyframes...)

	var background []int
	if !s.cfg.Debug {
		background = BackgroundQueue(video.Duration, video.FPS, video.Frames, keyframes)
	}
	cache := framecache.New(video.Frames)

	s.mu.Lock()
	s.state = StateLoaded
	s.video = video
	s.cache = cache
	s.priority = newFIFO(PriorityQueue(keyframes))
	s.background = newFIFO(background)
	s.publishDepthLocked()
	s.mu.Unlock()

	s.logger.Info("Loaded %.3fs @ %.3ffps, %dx%d, %d frames, %d keyframes, %d background",
		video.Duration, video.FPS, video.Width, video.Height, video.Frames, len(keyframes), len(background))

	if s.onLoaded != nil {
		s.onLoaded(Loaded{Video: video, Keyframes: keyframes, Cache: cache})
	}
}

func (s *Scheduler) handleSeeked(ctx context.Context, landed float64) error {
	index := timecode.TimeToIndex(landed, s.cfg.FPS)

	s.mu.Lock()
	s.current = index
	frames := s.video.Frames
	cache := s.cache
	s.mu.Unlock()

	if index >= frames {
		s.logger.Debug("Landed past last frame: %.3fs -> %d (frames=%d)", landed, index, frames)
		return nil
	}
	if cache.Has(index) {
		s.countDuplicate()
		return nil
	}

	raster, err := s.player.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture frame %d: %w", index, err)
	}
	// A stopped session must not receive frames from a seek that was still
	// in flight.
	if ctx.Err() != nil {
		return nil
	}
	written, err := cache.Put(index, raster)
	if err != nil {
		return err
	}
	if !written {
		s.countDuplicate()
		return nil
	}

	s.mu.Lock()
	s.state = StateCaptured
	s.captured++
	s.mu.Unlock()
	metrics.FramesCapturedTotal.Inc()
	s.logger.Debug("Captured frame %d at %.3fs", index, landed)

	if s.captureHook != nil {
		s.captureHook(index)
	}
	return nil
}

// next pops the following seek target. Indices cached in the meantime are
// dropped without seeking.
func (s *Scheduler) next() (int, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publishDepthLocked()

	for _, q := range []struct {
		name  string
		queue *fifo
	}{
		{queuePriority, s.priority},
		{queueBackground, s.background},
	} {
		for {
			index, ok := q.queue.pop()
			if !ok {
				break
			}
			if s.cache.Has(index) {
				s.duplicates++
				metrics.DuplicateLandingsTotal.Inc()
				continue
			}
			return index, q.name, true
		}
	}
	return 0, "", false
}

func (s *Scheduler) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.setState(StateStopped)
		return ctxErr
	}
	s.setState(StateFailed)
	if errors.Is(err, media.ErrDecode) {
		metrics.DecodeErrorsTotal.Inc()
	}
	s.logger.Error("Extraction aborted: %v", err)
	return err
}

func (s *Scheduler) countDuplicate() {
	s.mu.Lock()
	s.duplicates++
	s.mu.Unlock()
	metrics.DuplicateLandingsTotal.Inc()
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) publishDepthLocked() {
	metrics.QueueDepth.WithLabelValues(queuePriority).Set(float64(s.priority.len()))
	metrics.QueueDepth.WithLabelValues(queueBackground).Set(float64(s.background.len()))
}

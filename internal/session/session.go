// Package session owns the state of one opened video: its descriptor, the
// extraction run feeding the frame cache, the annotations and the label
// configuration. It also reads and writes the session document.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/video-annotator/internal/annotation"
	"github.com/MimeLyc/video-annotator/internal/extraction"
	"github.com/MimeLyc/video-annotator/internal/framecache"
	"github.com/MimeLyc/video-annotator/internal/labels"
	"github.com/MimeLyc/video-annotator/internal/media"
	"github.com/MimeLyc/video-annotator/internal/metrics"
	"github.com/MimeLyc/video-annotator/internal/notify"
	"github.com/MimeLyc/video-annotator/internal/timecode"
	"github.com/MimeLyc/video-annotator/pkg/log"
)

const DefaultFormatVersion = "v2.0.0"

// Info is a read-only view of a session.
type Info struct {
	ID          string            `json:"id"`
	Src         string            `json:"src"`
	OpenedAt    time.Time         `json:"openedAt"`
	Loaded      bool              `json:"loaded"`
	Video       extraction.Video  `json:"video"`
	Keyframes   []int             `json:"keyframeList"`
	Left        int               `json:"leftCurrentFrame"`
	Right       int               `json:"rightCurrentFrame"`
	Cached      int               `json:"cachedFrames"`
	Annotations int               `json:"annotations"`
	Saved       bool              `json:"isSaved"`
	Extraction  extraction.Status `json:"extraction"`
}

type run struct {
	sched  *extraction.Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

type Session struct {
	id       string
	src      string
	openedAt time.Time
	version  string
	player   media.Player
	notifier notify.Notifier
	logger   *log.Logger
	baseCtx  context.Context
	onFatal  func(*Session, error)

	// runMu serialises starting and stopping extraction.
	runMu    sync.Mutex
	run      *run
	schedCfg extraction.Config

	mu          sync.RWMutex
	closed      bool
	loaded      bool
	video       extraction.Video
	keyframes   []int
	left, right int
	navFromDoc  bool
	cache       *framecache.Cache
	annotations *annotation.Set
	labels      labels.Config
	revision    uint64
	savedRev    uint64
}

func (s *Session) ID() string { return s.id }

func (s *Session) Src() string { return s.src }

func (s *Session) start() {
	sched := extraction.NewScheduler(s.player, s.schedCfg, s.handleLoaded)
	ctx, cancel := context.WithCancel(s.baseCtx)
	r := &run{sched: sched, cancel: cancel, done: make(chan struct{})}
	s.run = r

	go func() {
		err := sched.Run(ctx)
		close(r.done)
		if err != nil && ctx.Err() == nil {
			s.fail(err)
		}
	}()
}

// stop cancels extraction and waits until the run can no longer touch the
// cache. Callers hold runMu.
func (s *Session) stop() {
	if s.run == nil {
		return
	}
	s.run.cancel()
	<-s.run.done
	s.run = nil
}

func (s *Session) fail(err error) {
	s.notifier.Notify(notify.LevelError, fmt.Sprintf("Failed to decode video %s, closing it: %v", s.src, err))
	if s.onFatal != nil {
		s.onFatal(s, err)
	}
}

func (s *Session) handleLoaded(l extraction.Loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loaded = true
	s.video = l.Video
	s.cache = l.Cache
	if !s.navFromDoc {
		s.keyframes = l.Keyframes
		s.left, s.right = openNav(l.Keyframes)
	}
}

// openNav places the navigation pointers after a video opens.
func openNav(keyframes []int) (int, int) {
	if len(keyframes) == 0 {
		return 0, 0
	}
	if len(keyframes) > 1 {
		return keyframes[0], keyframes[1]
	}
	return keyframes[0], keyframes[0]
}

// loadNav places the navigation pointers after a document is loaded.
func loadNav(keyframes []int) (int, int) {
	if len(keyframes) > 2 {
		return keyframes[0], keyframes[1]
	}
	return keyframes[0], keyframes[0]
}

// Close stops extraction and drops the descriptor, cache and annotations.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.runMu.Lock()
	s.stop()
	s.runMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.loaded = false
	if s.cache != nil {
		s.cache.Clear()
	}
	s.cache = nil
	s.video = extraction.Video{}
	s.keyframes = nil
	s.annotations = annotation.NewSet()
	s.mu.Unlock()

	s.logger.Info("Session closed")
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("close media: %w", err)
	}
	return nil
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) Info() Info {
	s.runMu.Lock()
	var status extraction.Status
	if s.run != nil {
		status = s.run.sched.Status()
	}
	s.runMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:          s.id,
		Src:         s.src,
		OpenedAt:    s.openedAt,
		Loaded:      s.loaded,
		Video:       s.video,
		Keyframes:   append([]int(nil), s.keyframes...),
		Left:        s.left,
		Right:       s.right,
		Annotations: s.annotations.Len(),
		Saved:       s.revision == s.savedRev,
		Extraction:  status,
	}
	if s.cache != nil {
		info.Cached = s.cache.Len()
	}
	return info
}

// Frame returns the cached raster for index. A frame that is not cached yet
// is moved to the front of extraction and reported as absent.
func (s *Session) Frame(index int) ([]byte, bool, error) {
	s.mu.RLock()
	closed, loaded, cache, frames := s.closed, s.loaded, s.cache, s.video.Frames
	s.mu.RUnlock()

	if closed || !loaded {
		return nil, false, NewError(ErrNoVideo, "video is not loaded")
	}
	if index < 0 || index >= frames {
		return nil, false, NewError(ErrInvalid, "frame index out of range").
			WithContext("index", index).WithContext("frames", frames)
	}
	if raster, ok := cache.Get(index); ok {
		return raster, true, nil
	}

	s.runMu.Lock()
	if s.run != nil {
		s.run.sched.Prioritize(index)
	}
	s.runMu.Unlock()
	return nil, false, nil
}

// DumpFrames writes every cached frame into dir.
func (s *Session) DumpFrames(ctx context.Context, dir string, workers int) (int, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()
	if cache == nil {
		return 0, NewError(ErrNoVideo, "video is not loaded")
	}
	return cache.Dump(ctx, dir, workers)
}

// Add records an annotation made on frame. Actions carry their own frame
// interval and ignore frame.
func (s *Session) Add(frame int, a annotation.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.loaded {
		return NewError(ErrNoVideo, "video is not loaded")
	}

	last := frame
	if act, ok := a.(annotation.Action); ok {
		last = act.End
	}
	if last >= s.video.Frames {
		return NewError(ErrInvalid, "annotation lies beyond the last frame").
			WithContext("frame", last).WithContext("frames", s.video.Frames)
	}
	if err := s.annotations.Add(frame, a); err != nil {
		return WrapError(err, ErrInvalid, "invalid annotation")
	}
	s.revision++
	return nil
}

func (s *Session) Annotations() *annotation.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotations.Clone()
}

func (s *Session) Labels() labels.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels
}

// Snapshot captures the document state and the revision it reflects.
func (s *Session) Snapshot() (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Video:       s.video,
		Keyframes:   append([]int(nil), s.keyframes...),
		Annotations: s.annotations.Clone(),
		Labels:      s.labels,
	}, s.revision
}

// Export renders the session document. The returned revision is passed to
// MarkSaved once the document has been stored.
func (s *Session) Export() ([]byte, uint64, error) {
	if s.Closed() {
		return nil, 0, NewError(ErrNoVideo, "no video is open")
	}
	snap, rev := s.Snapshot()
	data, err := Export(snap, s.version)
	if err != nil {
		return nil, 0, err
	}
	return data, rev, nil
}

// MarkSaved flags the session clean unless it changed after rev.
func (s *Session) MarkSaved(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev == s.revision {
		s.savedRev = rev
	}
}

func (s *Session) IsSaved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision == s.savedRev
}

// Load replaces annotations, keyframes, labels and fps with the document's.
// Nothing changes unless the whole document decodes. Failures produce one
// error notification and a version mismatch one warning.
func (s *Session) Load(data []byte) error {
	if s.Closed() {
		err := NewError(ErrNoVideo, "no video is open")
		s.notifier.Notify(notify.LevelError, err.Error())
		metrics.SessionImportsTotal.WithLabelValues("failed").Inc()
		return err
	}

	imp, err := Import(data, s.version)
	if err != nil {
		s.notifier.Notify(notify.LevelError, err.Error())
		metrics.SessionImportsTotal.WithLabelValues("failed").Inc()
		return err
	}
	if imp.Warning != "" {
		s.notifier.Notify(notify.LevelWarn, imp.Warning)
	}
	for _, w := range imp.LabelWarnings {
		s.logger.Warn("Label configuration: %s", w)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.RLock()
	restart := imp.Video.FPS != s.video.FPS
	s.mu.RUnlock()
	if restart {
		s.stop()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		err := NewError(ErrNoVideo, "video was closed during load")
		s.notifier.Notify(notify.LevelError, err.Error())
		metrics.SessionImportsTotal.WithLabelValues("failed").Inc()
		return err
	}
	s.annotations = imp.Annotations
	s.labels = imp.Labels
	s.keyframes = imp.Keyframes
	s.left, s.right = loadNav(imp.Keyframes)
	s.navFromDoc = true
	s.video.FPS = imp.Video.FPS
	if restart {
		if s.loaded {
			s.video.Frames = timecode.FrameCount(s.video.Duration, s.video.FPS)
			s.cache = framecache.New(s.video.Frames)
		}
		cfg := s.schedCfg
		cfg.FPS = imp.Video.FPS
		cfg.Keyframes = append([]int(nil), imp.Keyframes...)
		if s.loaded {
			cfg.Duration, cfg.Width, cfg.Height = s.video.Duration, s.video.Width, s.video.Height
		}
		s.schedCfg = cfg
	}
	s.revision++
	s.savedRev = s.revision
	s.mu.Unlock()

	if restart {
		s.logger.Info("Frame rate changed to %.3f, restarting extraction", imp.Video.FPS)
		s.start()
	} else if s.run != nil {
		for _, k := range imp.Keyframes {
			s.run.sched.Prioritize(k)
		}
	}

	metrics.SessionImportsTotal.WithLabelValues("ok").Inc()
	s.notifier.Notify(notify.LevelInfo, "Load successfully!")
	return nil
}

// Manager holds the single open session. Opening a video closes the
// previous one first.
type Manager struct {
	opener   media.Opener
	notifier notify.Notifier
	version  string
	labels   labels.Config
	fps      float64
	debug    bool
	stride   int
	baseCtx  context.Context

	lifecycle sync.Mutex

	mu      sync.RWMutex
	current *Session
}

type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func WithFormatVersion(v string) Option {
	return func(m *Manager) {
		m.version = v
	}
}

func WithLabels(cfg labels.Config) Option {
	return func(m *Manager) {
		m.labels = cfg
	}
}

// WithDefaultFPS sets the frame rate used when Open is given none.
func WithDefaultFPS(fps float64) Option {
	return func(m *Manager) {
		m.fps = fps
	}
}

// WithDebug disables background pre-fetch.
func WithDebug(debug bool) Option {
	return func(m *Manager) {
		m.debug = debug
	}
}

func WithKeyframeStride(stride int) Option {
	return func(m *Manager) {
		m.stride = stride
	}
}

// WithBaseContext sets the parent context of every extraction run.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) {
		m.baseCtx = ctx
	}
}

func NewManager(opener media.Opener, opts ...Option) *Manager {
	m := &Manager{
		opener:   opener,
		notifier: notify.NewFeed(0),
		version:  DefaultFormatVersion,
		labels:   labels.Default(),
		fps:      10,
		stride:   extraction.DefaultKeyframeStride,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) FormatVersion() string { return m.version }

func (m *Manager) DefaultFPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fps
}

// SetDefaultFPS changes the frame rate used by later opens. The open
// session keeps its own.
func (m *Manager) SetDefaultFPS(fps float64) error {
	if fps <= 0 {
		return NewError(ErrInvalid, "fps must be positive").WithContext("fps", fps)
	}
	m.mu.Lock()
	m.fps = fps
	m.mu.Unlock()
	return nil
}

func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Open starts a new session for src. fps <= 0 uses the default frame rate.
func (m *Manager) Open(src string, fps float64) (*Session, error) {
	if src == "" {
		return nil, NewError(ErrInvalid, "video source is required")
	}
	if fps <= 0 {
		fps = m.DefaultFPS()
	}
	if fps <= 0 {
		return nil, NewError(ErrInvalid, "fps must be positive")
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if err := m.closeCurrent(); err != nil {
		log.Warn("Closing previous session: %v", err)
	}

	player, err := m.opener(src)
	if err != nil {
		return nil, WrapError(err, ErrInvalid, "open video").WithContext("src", src)
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		src:         src,
		openedAt:    time.Now(),
		version:     m.version,
		player:      player,
		notifier:    m.notifier,
		logger:      log.With("session", id),
		baseCtx:     m.baseCtx,
		onFatal:     m.dropFailed,
		video:       extraction.Video{Src: src, FPS: fps},
		annotations: annotation.NewSet(),
		labels:      m.labels,
		schedCfg: extraction.Config{
			Src:            src,
			FPS:            fps,
			Debug:          m.debug,
			KeyframeStride: m.stride,
		},
	}

	s.runMu.Lock()
	s.start()
	s.runMu.Unlock()

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	s.logger.Info("Opened %s @ %.3ffps", src, fps)
	return s, nil
}

// Close closes the open session, if any.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.closeCurrent()
}

func (m *Manager) closeCurrent() error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// dropFailed tears down a session whose extraction hit a fatal error.
func (m *Manager) dropFailed(s *Session, _ error) {
	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
	if err := s.Close(); err != nil {
		s.logger.Warn("Closing failed session: %v", err)
	}
}

// Load applies a document to the open session.
func (m *Manager) Load(data []byte) error {
	s := m.Current()
	if s == nil {
		err := NewError(ErrNoVideo, "open a video before loading annotations")
		m.notifier.Notify(notify.LevelError, err.Error())
		metrics.SessionImportsTotal.WithLabelValues("failed").Inc()
		return err
	}
	return s.Load(data)
}

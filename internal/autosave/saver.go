// Package autosave writes the open session's document to the configured
// sinks, on request and on a cron schedule while there are unsaved edits.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/video-annotator/internal/metrics"
	"github.com/MimeLyc/video-annotator/internal/session"
	"github.com/MimeLyc/video-annotator/pkg/icron"
	"github.com/MimeLyc/video-annotator/pkg/log"
)

type Result struct {
	File     string    `json:"file"`
	Sinks    []string  `json:"sinks"`
	Revision uint64    `json:"revision"`
	SavedAt  time.Time `json:"savedAt"`
}

type Saver struct {
	manager *session.Manager
	sinks   []Sink
	cron    *cron.Cron

	mu       sync.Mutex
	cronExpr string
	name     string
	entry    cron.EntryID
	ctx      context.Context

	group singleflight.Group
}

type Option func(*Saver)

// WithDocumentName sets the document name used by scheduled saves.
func WithDocumentName(name string) Option {
	return func(s *Saver) {
		s.name = name
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(s *Saver) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func NewSaver(manager *session.Manager, c *cron.Cron, cronExpr string, opts ...Option) *Saver {
	s := &Saver{
		manager:  manager,
		cron:     c,
		cronExpr: cronExpr,
		name:     session.DefaultDocumentName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the autosave job. An empty expression disables it.
func (s *Saver) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.scheduleLocked()
}

// Reschedule replaces the autosave expression and document name. The new
// schedule takes effect immediately when Schedule has already run.
func (s *Saver) Reschedule(cronExpr, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.name = name
	}
	if cronExpr == s.cronExpr {
		return nil
	}
	if cronExpr != "" {
		if err := icron.Validate(cronExpr); err != nil {
			return err
		}
	}
	s.cronExpr = cronExpr
	if s.ctx == nil {
		return nil
	}
	return s.scheduleLocked()
}

func (s *Saver) scheduleLocked() error {
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	if s.cronExpr == "" {
		log.Info("Autosave disabled")
		return nil
	}
	ctx := s.ctx
	id, err := s.cron.AddFunc(s.cronExpr, func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.entry = id
	if info, err := icron.GetTriggerInfo(s.cronExpr, time.Now()); err == nil {
		log.Info("Autosave scheduled with %s, next run in %v", s.cronExpr, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

func (s *Saver) documentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Saver) tick(ctx context.Context) {
	_, _, _ = s.group.Do("autosave", func() (any, error) {
		cur := s.manager.Current()
		if cur == nil || cur.IsSaved() {
			return nil, nil
		}
		res, err := s.save(ctx, cur, s.documentName())
		if err != nil {
			log.Error("Autosave of %s failed: %v", cur.Src(), err)
			return nil, err
		}
		log.Info("Autosaved %s to %v", res.File, res.Sinks)
		return nil, nil
	})
}

// Save writes the current document under name to every sink. The session is
// marked saved only when every sink succeeded.
func (s *Saver) Save(ctx context.Context, name string) (Result, error) {
	cur := s.manager.Current()
	if cur == nil {
		return Result{}, session.NewError(session.ErrNoVideo, "no video is open")
	}
	return s.save(ctx, cur, name)
}

func (s *Saver) save(ctx context.Context, cur *session.Session, name string) (Result, error) {
	if len(s.sinks) == 0 {
		return Result{}, errors.New("no save sinks configured")
	}
	data, rev, err := cur.Export()
	if err != nil {
		return Result{}, err
	}
	doc := Document{
		Name:    session.DocumentFileName(name),
		Src:     cur.Src(),
		Version: s.manager.FormatVersion(),
		Data:    data,
	}

	res := Result{File: doc.Name, Revision: rev}
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, doc); err != nil {
			metrics.SessionSavesTotal.WithLabelValues(sink.Name(), "failed").Inc()
			errs = append(errs, session.WrapError(err, session.ErrUnknown, "save failed").WithContext("sink", sink.Name()))
			continue
		}
		metrics.SessionSavesTotal.WithLabelValues(sink.Name(), "ok").Inc()
		res.Sinks = append(res.Sinks, sink.Name())
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	cur.MarkSaved(rev)
	res.SavedAt = time.Now().UTC()
	return res, nil
}

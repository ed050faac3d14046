// Package notify is the operator-facing notification surface. The core
// reports warnings and failures through it and never swallows them.
package notify

import (
	"sync"
	"time"

	"github.com/MimeLyc/video-annotator/pkg/log"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Notifier interface {
	Notify(level Level, message string)
}

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed logs every notification and keeps the most recent ones so the host
// surface can show them.
type Feed struct {
	limit int

	mu    sync.RWMutex
	items []Notification
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(level Level, message string) {
	switch level {
	case LevelError:
		log.Error("notify: %s", message)
	case LevelWarn:
		log.Warn("notify: %s", message)
	default:
		log.Info("notify: %s", message)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, Notification{Level: level, Message: message, At: time.Now()})
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Recent returns a copy of the retained notifications, oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Notification(nil), f.items...)
}

// Count returns how many retained notifications have the given level.
func (f *Feed) Count(level Level) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, item := range f.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

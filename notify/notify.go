// Package notify carries short user facing notifications out of the
// service layers, the way a mobile client would raise a toast.
package notify

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Level represents the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notifier shows notifications to the user
type Notifier interface {
	Success(message, subtitle string)
	Error(message, subtitle string)
	Info(message, subtitle string)
	Warning(message, subtitle string)
}

// Notification is a single recorded notification
type Notification struct {
	Level    Level
	Message  string
	Subtitle string
}

// Log returns a Notifier that writes notifications to the logger
func Log() Notifier {
	return logNotifier{}
}

type logNotifier struct{}

func (logNotifier) Success(message, subtitle string) { logEntry(subtitle).Info(message) }
func (logNotifier) Error(message, subtitle string)   { logEntry(subtitle).Error(message) }
func (logNotifier) Info(message, subtitle string)    { logEntry(subtitle).Info(message) }
func (logNotifier) Warning(message, subtitle string) { logEntry(subtitle).Warn(message) }

func logEntry(subtitle string) *log.Entry {
	e := log.WithField("notify", true)
	if subtitle != "" {
		e = e.WithField("detail", subtitle)
	}
	return e
}

// Discard drops every notification
var Discard Notifier = discard{}

type discard struct{}

func (discard) Success(string, string) {}
func (discard) Error(string, string)   {}
func (discard) Info(string, string)    {}
func (discard) Warning(string, string) {}

// Recorder keeps every notification in memory
type Recorder struct {
	m    sync.Mutex
	list []Notification
}

// Success implements Notifier
func (r *Recorder) Success(message, subtitle string) { r.add(LevelSuccess, message, subtitle) }

// Error implements Notifier
func (r *Recorder) Error(message, subtitle string) { r.add(LevelError, message, subtitle) }

// Info implements Notifier
func (r *Recorder) Info(message, subtitle string) { r.add(LevelInfo, message, subtitle) }

// Warning implements Notifier
func (r *Recorder) Warning(message, subtitle string) { r.add(LevelWarning, message, subtitle) }

// Notifications returns a copy of the recorded notifications
func (r *Recorder) Notifications() []Notification {
	r.m.Lock()
	defer r.m.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Reset forgets every recorded notification
func (r *Recorder) Reset() {
	r.m.Lock()
	r.list = nil
	r.m.Unlock()
}

func (r *Recorder) add(level Level, message, subtitle string) {
	r.m.Lock()
	r.list = append(r.list, Notification{Level: level, Message: message, Subtitle: subtitle})
	r.m.Unlock()
}

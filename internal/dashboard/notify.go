package dashboard

import (
	"time"

	"github.com/nwchenyw/tw-live-frontend/internal/logger"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a transient, toast-style message for the user.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier receives user-facing notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Queue is a bounded Notifier. When full, the newest notification is dropped
// so a stalled reader never blocks a refresh.
type Queue struct {
	ch chan Notification
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Notification, size)}
}

func (q *Queue) Notify(n Notification) {
	select {
	case q.ch <- n:
	default:
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan Notification {
	return q.ch
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger logger.Logger
}

func (l LogNotifier) Notify(n Notification) {
	log := l.Logger.WithField("notification_at", n.At)
	if n.Level == LevelError {
		log.Warn(n.Message)
		return
	}
	log.Info(n.Message)
}

// multiNotifier fans out to several notifiers.
type multiNotifier []Notifier

func (m multiNotifier) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

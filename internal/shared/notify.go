package shared

import "time"

// NoticeKind classifies a user-facing notification.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// DefaultNoticeDuration is how long a notification stays visible when no duration is given.
const DefaultNoticeDuration = 3 * time.Second

func (k NoticeKind) String() string {
	switch k {
	case NoticeInfo:
		return "info"
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return ""
	}
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(message string, kind NoticeKind, d time.Duration)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(message string, kind NoticeKind, d time.Duration)

func (f NotifierFunc) Notify(message string, kind NoticeKind, d time.Duration) {
	f(message, kind, d)
}

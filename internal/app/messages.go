package app

import "github.com/crumble-dev/crumble/pkg/session"

// SessionStartedMsg is sent when the live session finished its startup
// sequence.
type SessionStartedMsg struct {
	Session *session.LiveSession
}

// SessionStartErrorMsg is sent when startup failed and unwound.
type SessionStartErrorMsg struct {
	Err error
}

// SessionNoticeMsg wraps one notice from the live session.
type SessionNoticeMsg struct {
	Notice session.Notice
}

// SessionEndedMsg is sent when the notice stream closes.
type SessionEndedMsg struct{}

// errorClearMsg dismisses the transient error banner.
type errorClearMsg struct{}

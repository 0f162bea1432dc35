package service

import "fmt"

// State: состояние стриминговой сессии.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateClosed
	StateUnauthorized
	StateReconnecting
	// StateSignedOut: терминальное, только после выхода.
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateUnauthorized:
		return "unauthorized"
	case StateReconnecting:
		return "reconnecting"
	case StateSignedOut:
		return "signed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind: события жизненного цикла для подписчиков.
type EventKind int

const (
	EventConnected EventKind = iota
	EventClosed
	EventServerError
	EventSignOut
	EventTokensRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventClosed:
		return "closed"
	case EventServerError:
		return "server_error"
	case EventSignOut:
		return "sign_out"
	case EventTokensRefreshed:
		return "tokens_refreshed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

type Event struct {
	Kind EventKind
	// Reason: текст server-error или причина выхода
	Reason string
	Err    error
}

package stream

import "fmt"

// State is the lifecycle state of a Session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Command is an outbound control message.
type Command struct {
	ID     int    `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels []string `json:"channels"`
}

// CloseStatus reports a clean close initiated by the remote end. It is
// returned from Session.Run as an error value so callers can distinguish
// it with errors.As, but it indicates normal termination, not a failure.
type CloseStatus struct {
	Code   int
	Reason string
}

func (s *CloseStatus) Error() string {
	return fmt.Sprintf("stream closed by remote: code=%d reason=%q", s.Code, s.Reason)
}

package hsess

import "fmt"

// ErrorCode identifies the reason a session failed to establish, or was
// torn down before reaching Main.
type ErrorCode byte

// Session-error codes, carried as the first payload byte of a SESS response.
const (
	SessErrOK   ErrorCode = 0
	SessErrAuth ErrorCode = 1
	SessErrBusy ErrorCode = 2
	SessErrConn ErrorCode = 3
	SessErrPver ErrorCode = 4
	SessErrExpr ErrorCode = 5
	SessErrMesg ErrorCode = 6
)

func (c ErrorCode) String() string {
	switch c {
	case SessErrOK:
		return "ok"
	case SessErrAuth:
		return "auth"
	case SessErrBusy:
		return "busy"
	case SessErrConn:
		return "conn"
	case SessErrPver:
		return "pver"
	case SessErrExpr:
		return "expr"
	case SessErrMesg:
		return "mesg"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// SessionError is a final, typed error returned from Connect. It is never
// retried by the caller; all retry behavior lives inside the session phases.
type SessionError struct {
	Code   ErrorCode
	Detail string // populated only for SessErrMesg
}

func (e *SessionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("session error: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("session error: %s", e.Code)
}

func newSessionError(code ErrorCode, detail string) *SessionError {
	return &SessionError{Code: code, Detail: detail}
}

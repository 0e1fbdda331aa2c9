// Package errkind implements the core's domain error taxonomy and its
// deterministic mapping onto RESP error frames.
package errkind

import (
	"fmt"

	"github.com/genuineh/aikv/internal/resp"
)

// Kind classifies a domain failure. It is not a Go error type itself —
// Error below wraps a Kind with a detail string, the pair together is
// what every command handler returns on failure.
type Kind int

const (
	WrongArgCount Kind = iota
	InvalidCommand
	InvalidArgument
	Script
	Storage
	Cluster
)

// token is the short machine-readable prefix Redis clients key off of.
func (k Kind) token() string {
	switch k {
	case WrongArgCount:
		return "ERR"
	case InvalidCommand:
		return "ERR"
	case InvalidArgument:
		return "ERR"
	case Script:
		return "ERR"
	case Storage:
		return "ERR"
	case Cluster:
		return "ERR"
	default:
		return "ERR"
	}
}

// Error is the error value every command handler in this core returns
// on failure, instead of letting Go errors unwind as panics across the
// command boundary.
type Error struct {
	Kind   Kind
	Detail string
	// Token overrides the default machine token (e.g. "NOSCRIPT",
	// "MOVED", "ASK", "NOTBUSY") when the detail string does not
	// already start with its own convention.
	Token string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s", e.token(), e.Detail)
}

func (e *Error) token() string {
	if e.Token != "" {
		return e.Token
	}
	return e.Kind.token()
}

// ToResp converts the error to its wire representation.
func (e *Error) ToResp() resp.Value {
	return resp.NewError(e.Error())
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WithToken builds an error whose wire token is explicit (NOSCRIPT,
// MOVED, ASK, NOTBUSY) rather than the kind's default ERR.
func WithToken(kind Kind, token, detail string) *Error {
	return &Error{Kind: kind, Token: token, Detail: detail}
}

func WrongArgCountErr(cmd string) *Error {
	return Newf(WrongArgCount, "wrong number of arguments for '%s' command", cmd)
}

package chunk

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidArgument
	KindAccessDenied
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidArgument:
		return "invalid argument"
	case KindAccessDenied:
		return "access denied"
	default:
		return "storage error"
	}
}

var (
	ErrNotFound        = errors.New("chunk not found")
	ErrAlreadyExists   = errors.New("chunk already exists")
	ErrInvalidArgument = errors.New("invalid chunk argument")
	ErrAccessDenied    = errors.New("chunk access denied")
)

// Error is the only error type chunk storages return to their callers.
// Err holds the underlying cause and is never dropped.
type Error struct {
	Kind  Kind
	Chunk string
	Op    string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	s := fmt.Sprintf("chunk %q: %s: %s", e.Chunk, e.Op, msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) and friends work on any *Error.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrAlreadyExists:
		return e.Kind == KindAlreadyExists
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrAccessDenied:
		return e.Kind == KindAccessDenied
	}
	return false
}

func NotFound(name, op string, cause error) *Error {
	return &Error{Kind: KindNotFound, Chunk: name, Op: op, Err: cause}
}

func AlreadyExists(name, op string, cause error) *Error {
	return &Error{Kind: KindAlreadyExists, Chunk: name, Op: op, Err: cause}
}

func InvalidArgument(name, op, msg string, cause error) *Error {
	return &Error{Kind: KindInvalidArgument, Chunk: name, Op: op, Msg: msg, Err: cause}
}

func AccessDenied(name, op string, cause error) *Error {
	return &Error{
		Kind:  KindAccessDenied,
		Chunk: name,
		Op:    op,
		Msg:   fmt.Sprintf("access denied for chunk %s - %s", name, op),
		Err:   cause,
	}
}

func Generic(name, op string, cause error) *Error {
	return &Error{Kind: KindGeneric, Chunk: name, Op: op, Err: cause}
}

// Unsupported reports an operation the backend never performs.
func Unsupported(name, op, msg string) *Error {
	return &Error{Kind: KindGeneric, Chunk: name, Op: op, Msg: msg, Err: errors.ErrUnsupported}
}

// KindOf returns the kind of the first *Error in err's chain, or KindGeneric.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneric
}

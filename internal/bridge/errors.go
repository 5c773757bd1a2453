package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies a bridge failure by the recovery it needs.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from the bridge.
	KindUnknown Kind = iota
	// KindConnect means the device could not be opened within the open window.
	KindConnect
	// KindStream means an open connection failed mid-read.
	KindStream
	// KindParse means a record was malformed.
	KindParse
	// KindStale means no valid record arrived within the freshness timeout.
	KindStale
	// KindWrite means the output could not be published.
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindStream:
		return "stream"
	case KindParse:
		return "parse"
	case KindStale:
		return "stale"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

var (
	// ErrNoConnection is wrapped by connect errors once the open window has elapsed.
	ErrNoConnection = errors.New("no connection")

	// ErrMalformedRecord is wrapped by parse errors.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNoData is wrapped by staleness errors.
	ErrNoData = errors.New("no valid data")
)

// Error is a classified bridge failure.
// Use KindOf or errors.As to route it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

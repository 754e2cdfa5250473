// Package errs defines the error taxonomy shared by every core subsystem.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from the design.
type Kind int

const (
	// KindUnknown is returned by Classify when no sentinel in the chain matches.
	KindUnknown Kind = iota
	KindTransport
	KindProtocol
	KindBackend
	KindNotFound
	KindConflict
	KindConfig
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindBackend:
		return "backend"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConfig:
		return "config"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinels to wrap with fmt.Errorf("...: %w", Sentinel) at the call site.
var (
	Transport = errors.New("transport error")
	Protocol  = errors.New("protocol error")
	Backend   = errors.New("backend error")
	NotFound  = errors.New("not found")
	Conflict  = errors.New("conflict")
	Config    = errors.New("config error")
	Cancelled = errors.New("cancelled")
)

var sentinels = map[Kind]error{
	KindTransport: Transport,
	KindProtocol:  Protocol,
	KindBackend:   Backend,
	KindNotFound:  NotFound,
	KindConflict:  Conflict,
	KindConfig:    Config,
	KindCancelled: Cancelled,
}

// Classify walks the error chain and returns the taxonomy bucket it belongs to.
func Classify(err error) Kind {
	for k, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindUnknown
}

// Wrap annotates err with the given kind and message, preserving the chain
// so errors.Is(result, errs.Transport) (etc) keeps working.
func Wrap(kind Kind, msg string, err error) error {
	sentinel, ok := sentinels[kind]
	if !ok {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, sentinel, err)
}

// Package errkind classifies venue errors into the three retry tiers the
// order manager and strategy act on: Transient, LocalLogical, Fatal.
package errkind

import (
	"errors"

	"github.com/londonpotato1/standx-maker-bot/pkg/types"
)

// Kind is the classification outcome.
type Kind int

const (
	Transient Kind = iota
	LocalLogical
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case LocalLogical:
		return "local_logical"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify inspects err and returns its retry tier. A nil error classifies
// as Transient so callers can treat "no error" uniformly with "retry-safe".
func Classify(err error) Kind {
	if err == nil {
		return Transient
	}

	var venueErr *types.VenueError
	if errors.As(err, &venueErr) {
		switch venueErr.Category {
		case types.ErrHTTP404, types.ErrTimeout, types.ErrNetwork:
			return Transient
		case types.ErrRejected:
			return LocalLogical
		}
	}

	return Fatal
}

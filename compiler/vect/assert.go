package vect

import (
	"fmt"

	"tlog.app/go/loc"
)

// invariant guards contracts that only a compiler bug can violate. Violations
// abort the compilation; they are not user-visible failures.
func invariant(cond bool, msg string) {
	if cond {
		return
	}

	panic(fmt.Sprintf("%v: assertion failed: %v", loc.Caller(1), msg))
}

func (s eq4State) String() string {
	switch s {
	case eq4Trivial:
		return "trivial"
	case eq4Constrained:
		return "constrained"
	case eq4Empty:
		return "empty"
	}

	return "state?"
}

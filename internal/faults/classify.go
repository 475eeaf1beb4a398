package faults

import (
	"context"
	"errors"
)

// Classification reports how the engine should handle a failure.
// Retryable failures are absorbed by the retry policy; degradable failures
// advance a fallback chain; failures that are neither are fatal for the
// stage that raised them.
type Classification struct {
	Kind       Kind
	Retryable  bool
	Degradable bool
}

// Fatal reports whether the failure is neither retryable nor degradable.
func (c Classification) Fatal() bool {
	return !c.Retryable && !c.Degradable
}

// retryable kinds cover transient connectivity and timeout failures.
var retryable = map[Kind]bool{
	KindExtraction:        true,
	KindBackendConnection: true,
}

// degradable kinds cover content-quality failures for which an alternative
// stage implementation may succeed. An open circuit is degradable so a
// fallback chain can route around the unavailable dependency.
var degradable = map[Kind]bool{
	KindInvalidResponse:       true,
	KindValidation:            true,
	KindDependencyUnavailable: true,
}

// Classify maps a failure to its handling class. It is a pure function of
// the error's taxonomy kind; context deadline expiry with no taxonomy kind
// classifies as a retryable backend-connection failure.
func Classify(err error) Classification {
	kind := KindOf(err)

	if kind == KindUnknown && errors.Is(err, context.DeadlineExceeded) {
		kind = KindBackendConnection
	}

	return Classification{
		Kind:       kind,
		Retryable:  retryable[kind],
		Degradable: degradable[kind],
	}
}

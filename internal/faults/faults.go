// Package faults defines the failure taxonomy shared by the pipeline and
// the workflow engine. Every failure that crosses from a stage handler into
// the engine carries a Kind from this taxonomy; the classifier maps kinds to
// a handling class (retryable, degradable, or fatal) that determines whether
// the engine retries the stage, advances a fallback chain, or fails the job.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies one leaf of the failure taxonomy.
type Kind string

// Image processing failures.
const (
	KindPreprocessing     Kind = "image-processing/preprocessing"
	KindExtraction        Kind = "image-processing/extraction"
	KindStructureAnalysis Kind = "image-processing/structure-analysis"
)

// Content analysis failures.
const (
	KindBackendConnection Kind = "content-analysis/backend-connection"
	KindInvalidResponse   Kind = "content-analysis/invalid-response"
	KindValidation        Kind = "content-analysis/validation"
)

// Markup generation failures.
const (
	KindTemplate      Kind = "markup-generation/template"
	KindStyle         Kind = "markup-generation/style"
	KindMathRendering Kind = "markup-generation/math-rendering"
)

// API failures.
const (
	KindAuth          Kind = "api/auth"
	KindAPIValidation Kind = "api/validation"
	KindNotFound      Kind = "api/not-found"
)

// Synthetic failures raised by the resilience layer rather than a stage.
const (
	// KindDependencyUnavailable is raised when a circuit breaker rejects a
	// call without invoking the wrapped dependency.
	KindDependencyUnavailable Kind = "dependency-unavailable"

	// KindCancelled is recorded when a job is cancelled while in flight.
	KindCancelled Kind = "cancelled"

	// KindUnknown is assigned to failures that carry no taxonomy kind.
	KindUnknown Kind = "unknown"
)

// Failure is a classified error. It retains the original cause so the root
// failure is never lost even after reclassification at a higher layer.
type Failure struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

// New creates a Failure with the given kind and message.
func New(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// Newf creates a Failure with a formatted message.
func Newf(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a Failure that retains err as its cause.
func Wrap(kind Kind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: err}
}

// WithDetail attaches a structured key/value detail and returns the failure
// for chaining.
func (f *Failure) WithDetail(key string, value any) *Failure {
	if f.Details == nil {
		f.Details = make(map[string]any)
	}
	f.Details[key] = value
	return f
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// KindOf returns the taxonomy kind of err. Errors that are not a Failure
// (directly or anywhere in their chain) report KindUnknown.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// Record is the persisted form of a classified failure, appended to a job's
// error history. Cause links preserve the chain down to the root failure.
type Record struct {
	Kind      Kind           `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Node      string         `json:"node,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Cause     *Record        `json:"cause,omitempty"`
}

// RecordOf converts err into a Record attributed to the given node.
// Failure causes are recorded recursively; non-Failure causes terminate the
// chain with their message under KindUnknown.
func RecordOf(err error, node string) Record {
	rec := Record{
		Kind:      KindUnknown,
		Message:   err.Error(),
		Node:      node,
		Timestamp: time.Now().UTC(),
	}

	var f *Failure
	if !errors.As(err, &f) {
		return rec
	}

	rec.Kind = f.Kind
	rec.Message = f.Message
	if len(f.Details) > 0 {
		rec.Details = make(map[string]any, len(f.Details))
		for k, v := range f.Details {
			rec.Details[k] = v
		}
	}

	if f.Cause != nil {
		cause := RecordOf(f.Cause, node)
		rec.Cause = &cause
	}

	return rec
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUploadInProgress    = errors.New("an upload is already in progress")
	ErrTransformInProgress = errors.New("a transform is already in progress")
	ErrNoUploadedImage     = errors.New("no uploaded image")
)

// PhaseError reports an operation issued in a phase that does not permit it.
// The call is rejected and no state changes.
type PhaseError struct {
	Op    string
	Phase string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("operation %s is not allowed in phase %s", e.Op, e.Phase)
}

// ValidationError reports a patch field whose value violates its declared
// constraint. The prior value of the field is kept.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Constraint)
}

// UnknownOptionError reports an enumerated field set to a value outside its
// closed set.
type UnknownOptionError struct {
	Field string
	Value string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown %s option: %q", e.Field, e.Value)
}

// RemoteUploadError wraps a failure reported by the external asset store. The
// message is user-facing; a blank one is replaced by a generic fallback.
type RemoteUploadError struct {
	Message string
}

func (e *RemoteUploadError) Error() string {
	if e.Message == "" {
		return "upload failed: the asset store returned an error"
	}
	return "upload failed: " + e.Message
}

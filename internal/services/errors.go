package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify pipeline failures. Wrap tags an error with
// one of these so callers can branch on the failure class without parsing
// message text.
var (
	ErrResolution    = errors.New("resolution error")
	ErrExtraction    = errors.New("extraction failed")
	ErrTranscription = errors.New("transcription failed")
	ErrSummarization = errors.New("summarization failed")
	ErrStorage       = errors.New("storage error")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrExternalTool  = errors.New("external tool error")
	ErrTransient     = errors.New("transient failure")
)

// ServiceError carries stage context alongside the classification marker. The
// Message field is the human-readable text persisted on a failed task.
type ServiceError struct {
	Marker  error
	Stage   string
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Op, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Marker, e.Err}
	}
	return []error{e.Marker}
}

// Wrap builds a classified error that includes stage context. The marker should
// be one of the exported sentinel errors above; nil defaults to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:  marker,
		Stage:   strings.TrimSpace(stage),
		Op:      strings.TrimSpace(operation),
		Message: strings.TrimSpace(message),
		Err:     err,
	}
}

// Detail captures the user-facing portions of a classified error.
type Detail struct {
	Stage   string
	Op      string
	Message string
}

// Details extracts the human-readable detail from an error produced by Wrap.
// For unclassified errors the Message falls back to err.Error().
func Details(err error) Detail {
	if err == nil {
		return Detail{}
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		message := svcErr.Message
		if message == "" && svcErr.Err != nil {
			message = svcErr.Err.Error()
		}
		return Detail{Stage: svcErr.Stage, Op: svcErr.Op, Message: message}
	}
	return Detail{Message: err.Error()}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtraction    = errors.New("extraction error")
	ErrNoTracksFound = errors.New("no tracks found")
	ErrMixFailed     = errors.New("mix failed")
	ErrNoRecordings  = errors.New("no recordings")
	ErrConcat        = errors.New("concat error")
	ErrMove          = errors.New("move error")
	ErrConfiguration = errors.New("configuration error")
	ErrSessionLocked = errors.New("session locked")
	ErrExternalTool  = errors.New("external tool error")
)

// NoIndex marks a Failure that is not tied to a single archive or recording.
const NoIndex = -1

// Failure is a fatal pipeline error annotated with the stage that raised it
// and the input that caused it.
type Failure struct {
	Marker error
	Stage  string
	Index  int
	Path   string
	Err    error
}

// Fail builds a Failure. Marker should be one of the exported sentinels above;
// index is the archive/recording position or NoIndex.
func Fail(marker error, stage string, index int, path string, err error) error {
	if marker == nil {
		marker = ErrExternalTool
	}
	return &Failure{
		Marker: marker,
		Stage:  strings.TrimSpace(stage),
		Index:  index,
		Path:   strings.TrimSpace(path),
		Err:    err,
	}
}

func (f *Failure) Error() string {
	parts := make([]string, 0, 4)
	parts = append(parts, f.Marker.Error())
	if f.Stage != "" {
		parts = append(parts, f.Stage)
	}
	switch {
	case f.Index >= 0 && f.Path != "":
		parts = append(parts, fmt.Sprintf("recording %d (%s)", f.Index, f.Path))
	case f.Index >= 0:
		parts = append(parts, fmt.Sprintf("recording %d", f.Index))
	case f.Path != "":
		parts = append(parts, f.Path)
	}
	msg := strings.Join(parts, ": ")
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap exposes both the marker and the cause so errors.Is matches either.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Marker}
	}
	return []error{f.Marker, f.Err}
}

// WithIndex attributes an unindexed Failure to the input at index. Errors
// that are not Failures, or already carry an index, are returned unchanged.
func WithIndex(err error, index int) error {
	var failure *Failure
	if !errors.As(err, &failure) || failure.Index >= 0 {
		return err
	}
	clone := *failure
	clone.Index = index
	return &clone
}

// FailureIndex returns the input index recorded on err, if any.
func FailureIndex(err error) (int, bool) {
	var failure *Failure
	if !errors.As(err, &failure) || failure.Index < 0 {
		return 0, false
	}
	return failure.Index, true
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker. Use Fail when a specific input is to blame.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

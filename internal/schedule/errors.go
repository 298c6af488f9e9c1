package schedule

import (
	"errors"
	"fmt"
	"time"

	"confsched/internal/model"
)

var (
	// ErrInvalidRange indicates an item ends before it starts.
	ErrInvalidRange = errors.New("end before start")

	// ErrMissingField indicates a required item field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrNegativeTime indicates a timestamp before the Unix epoch.
	ErrNegativeTime = errors.New("timestamp before epoch")

	// ErrUnknownScope indicates a Scope outside the defined constants.
	ErrUnknownScope = errors.New("unknown conflict scope")
)

// ValidationError identifies the offending item of a rejected input.
type ValidationError struct {
	Index int
	ID    string
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule item %d (%q): %s: %v", e.Index, e.ID, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks every item and returns the first violation.
func Validate(items []model.Item) error {
	for i, it := range items {
		if err := validateItem(it); err != nil {
			err.Index = i
			err.ID = it.ID
			return err
		}
	}
	return nil
}

func validateItem(it model.Item) *ValidationError {
	switch {
	case it.Title == "":
		return &ValidationError{Field: "title", Err: ErrMissingField}
	case it.Start.IsZero():
		return &ValidationError{Field: "start", Err: ErrMissingField}
	case it.End.IsZero():
		return &ValidationError{Field: "end", Err: ErrMissingField}
	case it.Start.Before(time.Unix(0, 0)):
		return &ValidationError{Field: "start", Err: ErrNegativeTime}
	case it.End.Before(it.Start):
		return &ValidationError{Field: "end", Err: ErrInvalidRange}
	}
	return nil
}

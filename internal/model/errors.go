package model

import (
	"errors"
	"strings"
)

// Error taxonomy shared by the store, the HTTP layer, the client and the
// planner.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrPersistence      = errors.New("persistence failure")
)

// ValidationError describes malformed input. Missing lists absent required
// fields in the order they were checked.
type ValidationError struct {
	Missing []string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Message != "":
		return e.Message + ": missing " + strings.Join(e.Missing, ", ")
	case len(e.Missing) > 0:
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	case e.Message != "":
		return e.Message
	}
	return ErrValidation.Error()
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Package apperr defines the error kinds returned by services. Handlers map
// them to HTTP statuses through pkg/response.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrPermission          = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrCapacity            = errors.New("event is at full capacity")
	ErrEventExpired        = errors.New("event has already taken place")
	ErrNotRegistered       = errors.New("not registered for this event")
	ErrAlreadyRegistered   = errors.New("already registered for this event")
	ErrInvitationExpired   = errors.New("invitation has expired")
	ErrInvitationProcessed = errors.New("invitation has already been processed")
	ErrConflict            = errors.New("conflict")
	ErrNoActiveOrg         = errors.New("no active organization")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ValidationError carries field-level messages. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidation returns a ValidationError with a single field message.
func NewValidation(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records a message for field. The first message per field wins.
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	if _, ok := v.Fields[field]; !ok {
		v.Fields[field] = msg
	}
}

// OrNil returns v when it holds at least one field, else nil.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

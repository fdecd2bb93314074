package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoContent is returned when no question matches the assigned topics.
	ErrNoContent = errors.New("no questions for assigned topics")
	// ErrMissingIdentity is returned when participant identifiers are absent at start.
	ErrMissingIdentity = errors.New("participant identity incomplete")
	// ErrGroupNotFound indicates the referenced group has no backing record.
	ErrGroupNotFound = errors.New("group not found")
	// ErrPersistenceFailure wraps result sink failures.
	ErrPersistenceFailure = errors.New("result persistence failed")
	// ErrSessionNotFound is returned for unknown or disposed session ids.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned when an answer arrives outside the Active state.
	ErrSessionNotActive = errors.New("quiz session is not active")
	// ErrOptionNotFound indicates a submitted option is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidQuestion marks bank entries that break question invariants.
	ErrInvalidQuestion = errors.New("invalid question")
)

// NoContentError carries diagnostics for operators when selection came back empty.
type NoContentError struct {
	GroupID         string
	BankSize        int
	Candidates      int
	AssignedTopics  []string
	AvailableTopics []string
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("%s: group=%s bank=%d candidates=%d assigned=[%s] available=[%s]",
		ErrNoContent, e.GroupID, e.BankSize, e.Candidates,
		strings.Join(e.AssignedTopics, ","), strings.Join(e.AvailableTopics, ","))
}

func (e *NoContentError) Unwrap() error { return ErrNoContent }

// IdentityError lists the participant fields that were missing.
type IdentityError struct {
	Missing []string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrMissingIdentity, strings.Join(e.Missing, ", "))
}

func (e *IdentityError) Unwrap() error { return ErrMissingIdentity }

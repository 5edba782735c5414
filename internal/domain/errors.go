// Package domain holds the quote and favorites model and its error kinds.
// Domain errors describe what went wrong for the user of the store; adapters
// decide how each kind is reported (HTTP status, CLI exit message).
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a value failed a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")
)

// Kind classifies an Error. Each kind matches one sentinel.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindUnavailable
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// Error is a classified domain failure.
//
// Subject is what the error is about: the entity for KindNotFound, the field
// for KindValidation, the dependency for KindUnavailable. Detail is the id
// that was not found, the rule that failed, or why the dependency failed.
// Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Subject string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Detail == "" {
			return e.Subject + " not found"
		}

		return fmt.Sprintf("%s with id %q not found", e.Subject, e.Detail)

	case KindValidation:
		if e.Subject == "" {
			return "validation failed: " + e.Detail
		}

		return fmt.Sprintf("validation failed for %s: %s", e.Subject, e.Detail)

	case KindUnavailable:
		if e.Detail == "" {
			return fmt.Sprintf("service %q unavailable", e.Subject)
		}

		return fmt.Sprintf("service %q unavailable: %s", e.Subject, e.Detail)

	default:
		return e.Detail
	}
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing entity. id may be empty.
func NewNotFoundError(entity, id string) error {
	return &Error{Kind: KindNotFound, Subject: entity, Detail: id}
}

// NewValidationError reports a broken rule on field. field may be empty.
func NewValidationError(field, message string) error {
	return &Error{Kind: KindValidation, Subject: field, Detail: message}
}

// NewUnavailableError reports a dependency that could not serve the request.
func NewUnavailableError(service, reason string) error {
	return &Error{Kind: KindUnavailable, Subject: service, Detail: reason}
}

// WrapValidation is NewValidationError keeping cause in the chain.
func WrapValidation(field, message string, cause error) error {
	return &Error{Kind: KindValidation, Subject: field, Detail: message, Err: cause}
}

// WrapUnavailable is NewUnavailableError keeping cause in the chain.
func WrapUnavailable(service, reason string, cause error) error {
	return &Error{Kind: KindUnavailable, Subject: service, Detail: reason, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain. A bare
// sentinel, wrapped or not, yields its kind. Anything else is 0.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	for _, k := range []Kind{KindNotFound, KindValidation, KindUnavailable} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}

	return 0
}

// Shorthands for errors.Is against the sentinels.
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrTokenNotProvided       = errors.New("token not provided")
	ErrTokenBlacklisted       = errors.New("the token has been blacklisted")
	ErrRefresh                = errors.New("refresh token failed")
	ErrRegistration           = errors.New("registration failed")
)

// ValidationError maps a request field to its human-readable problems.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return "validation failed: " + strings.Join(fields, ", ")
}

const (
	emailTakenMessage      = "The email has already been taken."
	passwordTooLongMessage = "The password must not be greater than 72 bytes."
)

func fieldError(field, message string) *ValidationError {
	verr := NewValidationError()
	verr.Add(field, message)
	return verr
}

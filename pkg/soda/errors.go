package soda

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrCountUnavailable is returned when the count query fails.
	// Without a total count the fetch loop cannot be bounded, so this
	// error is fatal to a bulk fetch.
	ErrCountUnavailable = errors.New("count query unavailable")

	// ErrCountParse is returned when the count response does not carry
	// a numeric count field.
	ErrCountParse = errors.New("count response malformed")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus categorizes an HTTP status code for observability.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// APIError represents a failed request against the SODA resource.
type APIError struct {
	// Kind is the request shape that failed: "count" or "page".
	Kind string

	// StatusCode is the HTTP status, 0 for transport errors.
	StatusCode int

	// Class is the error classification.
	Class ErrorClass

	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("soda %s %s error (status %d): %s: %v",
			e.Kind, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("soda %s %s error (status %d): %s",
		e.Kind, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTransport        = errors.New("backend unreachable")
	ErrUnexpectedStatus = errors.New("unexpected backend status")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrDecode           = errors.New("invalid backend response")
)

// StatusError is returned when the backend answered with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrUnexpectedStatus
	}
}

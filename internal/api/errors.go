// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GenericMessage is shown when neither the server nor the caller supplies
// a message for a failure.
const GenericMessage = "An error occurred, please check your credentials and try again."

var (
	// ErrUnauthorized indicates a missing or expired session (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the session may not perform the action (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the resource does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrBadRequest indicates the server rejected the input (HTTP 400, 409, 422).
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited indicates too many requests were made (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a 5xx failure.
	ErrServer = errors.New("server error")

	// ErrMalformedResponse indicates a 2xx body that lacked the expected data.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error is a failed API call. Message is the server-provided text, if any.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d)", e.Status)
}

// Unwrap maps the status code to a sentinel.
func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServer
	case e.Status >= 400:
		return ErrBadRequest
	}
	return nil
}

// handleErrorResponse converts an HTTP error response into an *Error.
func handleErrorResponse(statusCode int, body []byte, requestID string) error {
	apiErr := &Error{Status: statusCode, RequestID: requestID}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Message)
	}
	return apiErr
}

// UserMessage picks the text of a failure notification: the server's
// message first, then fallback, then GenericMessage.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if fallback != "" {
		return fallback
	}
	return GenericMessage
}

// IsCanceled reports whether err came from a canceled context. Canceled
// requests are superseded, not failed, and should stay silent.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestHandleErrorResponse(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
		message  string
	}{
		{401, `{"message":"Session expired."}`, ErrUnauthorized, "Session expired."},
		{403, `{"message":"nope"}`, ErrForbidden, "nope"},
		{404, `not json`, ErrNotFound, ""},
		{409, `{"message":"Email already in use."}`, ErrBadRequest, "Email already in use."},
		{429, `{}`, ErrRateLimited, ""},
		{503, ``, ErrServer, ""},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := handleErrorResponse(tc.status, []byte(tc.body), "req-1")
			if !errors.Is(err, tc.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tc.sentinel)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("not an *Error: %T", err)
			}
			if apiErr.Message != tc.message {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.message)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	withServer := fmt.Errorf("wrapped: %w", &Error{Status: 400, Message: "Server says no"})
	bare := &Error{Status: 500}

	if got := UserMessage(withServer, "Failed to send message."); got != "Server says no" {
		t.Errorf("server message should win, got %q", got)
	}
	if got := UserMessage(bare, "Failed to send message."); got != "Failed to send message." {
		t.Errorf("fallback should be used, got %q", got)
	}
	if got := UserMessage(errors.New("dial tcp: refused"), ""); got != GenericMessage {
		t.Errorf("generic message expected, got %q", got)
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(fmt.Errorf("search: %w", context.Canceled)) {
		t.Error("wrapped context.Canceled not detected")
	}
	if IsCanceled(ErrServer) {
		t.Error("ErrServer reported as canceled")
	}
}

func TestCalculateBackoff(t *testing.T) {
	if calculateBackoff(1) != retryBaseDelay {
		t.Errorf("first retry delay = %v", calculateBackoff(1))
	}
	if calculateBackoff(10) != retryMaxDelay {
		t.Errorf("delay not capped: %v", calculateBackoff(10))
	}
}

// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrAuthentication is returned when the API rejects the team secret or session token.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotFound is returned when the API does not know the requested resource.
	ErrNotFound = errors.New("resource not found")
	// ErrMalformedResponse is returned when a response cannot be decoded or does not match its schema.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTimeout is returned when a call does not finish in time.
	ErrTimeout = errors.New("request timed out")
	// ErrRequestFailed is returned for any other failed call.
	ErrRequestFailed = errors.New("request failed")
	// ErrRetryable is returned when a call failed for a transient reason and can be repeated.
	ErrRetryable = errors.New("retryable error")
	// ErrCompileSchema is returned when a response schema cannot be built.
	ErrCompileSchema = errors.New("failed to compile response schema")
)

// ErrAPIResponse holds additional information about an error response of the API,
// including the raw HTTP response body.
type ErrAPIResponse struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Cause classifies the failure (ErrAuthentication, ErrNotFound, ...).
	Cause error
	// Body contains the raw HTTP response body.
	Body []byte
}

func (e *ErrAPIResponse) Error() string {
	msg := fmt.Sprintf("%v: status %d", e.Cause, e.StatusCode)
	if detail := errorDetail(e.Body); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *ErrAPIResponse) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewErrAPIResponse classifies a non-2xx response.
func NewErrAPIResponse(statusCode int, body []byte) *ErrAPIResponse {
	return &ErrAPIResponse{StatusCode: statusCode, Cause: statusError(statusCode), Body: body}
}

// WrapErrRetryable wraps an error as retryable, preserving the original error chain.
func WrapErrRetryable(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// WrapErrTimeout wraps an error as a timeout, preserving the original error chain.
func WrapErrTimeout(err error) error {
	return fmt.Errorf("%w: %w", ErrTimeout, err)
}

func statusError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthentication
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrRetryable
	}
	return ErrRequestFailed
}

// transportError classifies an error raised before a response was received.
func transportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapErrTimeout(err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return WrapErrTimeout(err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	// Refused, reset and dropped connections.
	return WrapErrRetryable(err)
}

// errorDetail extracts the message of an API error body.
// The API reports failures as {"Error": "..."} and sometimes adds a "trace".
func errorDetail(body []byte) string {
	var payload struct {
		Error string `json:"Error"`
		Trace string `json:"trace"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Trace != "" {
			return payload.Trace
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

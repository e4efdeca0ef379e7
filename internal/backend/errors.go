// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jeranaias/courier-tui/internal/util"
)

// =============================================================================
// ERROR CATEGORIES
// =============================================================================

// Category classifies a transport failure. The set is closed so the state
// machine and UI never see raw transport error strings.
type Category string

const (
	CategoryConnectionRefused Category = "connection_refused"
	CategoryTimedOut          Category = "timed_out"
	CategoryNoNetwork         Category = "no_network"
	CategoryConnectionLost    Category = "connection_lost"
	CategoryServerError       Category = "server_error"
)

// TransportError is a classified transport failure.
type TransportError struct {
	Category   Category
	StatusCode int // set only for CategoryServerError
	cause      error
}

func (e *TransportError) Error() string {
	if e.cause != nil {
		return string(e.Category) + ": " + e.cause.Error()
	}
	return string(e.Category)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// HumanMessage returns the user-facing text for this failure. This string
// becomes the assistant message content, so it must read like a sentence,
// not an exception dump.
func (e *TransportError) HumanMessage() string {
	switch e.Category {
	case CategoryConnectionRefused:
		return "cannot connect, start the backend"
	case CategoryTimedOut:
		return "request timed out"
	case CategoryNoNetwork:
		return "no internet connection"
	case CategoryConnectionLost:
		return "connection lost"
	case CategoryServerError:
		return "server error (" + util.IntToString(e.StatusCode) + ")"
	default:
		return "connection lost"
	}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// serverError builds a TransportError for a non-2xx HTTP response.
func serverError(status int) *TransportError {
	return &TransportError{Category: CategoryServerError, StatusCode: status}
}

// Classify maps a raw transport error into the closed category set.
//
// Typed checks run first; keyword matching on the error string is the
// fallback because net and http wrap platform errors inconsistently.
func Classify(err error) *TransportError {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	wrap := func(cat Category) *TransportError {
		return &TransportError{Category: cat, cause: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return wrap(CategoryConnectionRefused)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(CategoryTimedOut)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(CategoryTimedOut)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return wrap(CategoryNoNetwork)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "cannot connect"),
		strings.Contains(msg, "actively refused"):
		return wrap(CategoryConnectionRefused)

	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return wrap(CategoryTimedOut)

	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "network unreachable"):
		return wrap(CategoryNoNetwork)

	default:
		// Mid-stream drops (reset, EOF, broken pipe) and anything else.
		return wrap(CategoryConnectionLost)
	}
}

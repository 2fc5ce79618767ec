/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package errors provides structured errors with status codes used across
// the server and its components.
package errors

import "fmt"

// StatusCode represents the error codes used throughout the server. The
// numbering follows the Connect protocol codes so that a transport layer can
// map them without translation tables.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates that the client specified an invalid
	// argument, such as a malformed operation or an impossible base version.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates that a requested entity (document, revision)
	// was not found.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates that the entity a client attempted to
	// create already exists.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodePermissionDenied indicates that the caller does not have
	// permission to execute the specified operation.
	ErrCodePermissionDenied StatusCode = 7

	// ErrCodeResourceExhausted indicates that some resource has been
	// exhausted, perhaps a per-document subscriber limit.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates that the operation was rejected
	// because the system is not in a state required for its execution, such
	// as a client that has fallen too far behind the authoritative version.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates that some invariants expected by the
	// underlying system have been broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates that the service or its storage is
	// currently unavailable. Clients can back off and retry idempotent
	// operations.
	ErrCodeUnavailable StatusCode = 14
)

// String returns the string representation of the error code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodePermissionDenied:
		return "permission_denied"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeFailedPrecondition:
		return "failed_precondition"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// IsClientError returns true if the error code represents a client-side error.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeAlreadyExists,
		ErrCodePermissionDenied, ErrCodeResourceExhausted,
		ErrCodeFailedPrecondition:
		return true
	default:
		return false
	}
}

// IsServerError returns true if the error code represents a server-side error.
func (c StatusCode) IsServerError() bool {
	switch c {
	case ErrCodeInternal, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}

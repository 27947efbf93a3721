// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package opsmlerr defines the error taxonomy shared by every registry
// component. Handlers at the httpapi boundary convert an *Error into an
// HTTP status by inspecting Code; nothing below that boundary should need to
// know about HTTP.
package opsmlerr

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code enumerates the kinds of error the registry can produce.
type Code int

const (
	// InternalErr indicates an unknown, internal error has occurred.
	InternalErr Code = iota

	// InvalidRequest indicates malformed input: a bad version string, a
	// missing required field, a card variant that doesn't serialize.
	InvalidRequest

	// NotFound indicates the uid, or (space, name, version), does not
	// locate a row.
	NotFound

	// DuplicateVersion indicates an insert would violate the
	// (space, name, version) uniqueness constraint.
	DuplicateVersion

	// InvalidCardType indicates a card variant does not match its
	// target registry.
	InvalidCardType

	// InvalidVersionSpecifier indicates a specifier string does not
	// match the supported grammar.
	InvalidVersionSpecifier

	// StorageErr indicates an object-store failure, transient or
	// permanent.
	StorageErr

	// UploadErr indicates a chunked-upload part or complete failure;
	// Part identifies the offending part number when known.
	UploadErr

	// DatabaseErr indicates a connection, migration, or non-duplicate
	// constraint failure.
	DatabaseErr

	// AuthErr indicates a missing, expired, or otherwise invalid
	// credential.
	AuthErr

	// PermissionErr indicates a valid credential lacking the required
	// scope.
	PermissionErr

	// EncryptionErr indicates a DEK wrap/unwrap failure.
	EncryptionErr
)

func (c Code) String() string {
	switch c {
	case InvalidRequest:
		return "invalid_request"
	case NotFound:
		return "not_found"
	case DuplicateVersion:
		return "duplicate_version"
	case InvalidCardType:
		return "invalid_card_type"
	case InvalidVersionSpecifier:
		return "invalid_version_specifier"
	case StorageErr:
		return "storage_error"
	case UploadErr:
		return "upload_error"
	case DatabaseErr:
		return "database_error"
	case AuthErr:
		return "auth_error"
	case PermissionErr:
		return "permission_error"
	case EncryptionErr:
		return "encryption_error"
	default:
		return "internal_error"
	}
}

// Error is the error type returned by every registry component.
type Error struct {
	Code    Code
	Message string
	// Part is set only for UploadErr, naming the offending part number.
	Part int
	cause error
}

func (e *Error) Error() string {
	if e.Part > 0 {
		return fmt.Sprintf("opsml error (%s, part %d): %s", e.Code, e.Part, e.Message)
	}
	return fmt.Sprintf("opsml error (%s): %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/As reach the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an *Error of the given code.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given code around a lower-level cause,
// attaching a stack trace at the call site via github.com/pkg/errors (the
// teacher's own wrapping library, see server/server.go's errors.Wrapf
// calls) while preserving cause for errors.Is/As through Unwrap.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: pkgerrors.WithStack(cause)}
}

// Cause returns the innermost error pkgerrors.WithStack/Wrap has been
// stacking around, the same traversal github.com/pkg/errors.Cause does,
// so callers that want the original error rather than an *Error or a
// stack-trace wrapper can reach it in one call.
func Cause(err error) error {
	for {
		err = pkgerrors.Cause(err)
		e, ok := err.(*Error)
		if !ok || e.cause == nil {
			return err
		}
		err = e.cause
	}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, NotFound) }

// IsDuplicateVersion reports whether err is a DuplicateVersion error.
func IsDuplicateVersion(err error) bool { return Is(err, DuplicateVersion) }

// IsInvalidVersionSpecifier reports whether err is an
// InvalidVersionSpecifier error.
func IsInvalidVersionSpecifier(err error) bool { return Is(err, InvalidVersionSpecifier) }

// WithPart returns a copy of err with Part set, used when an upload fails on
// a specific part number.
func WithPart(err *Error, part int) *Error {
	cp := *err
	cp.Part = part
	return &cp
}

// HTTPStatus maps a Code to the HTTP status spec.md §7 assigns it.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidRequest, InvalidCardType, InvalidVersionSpecifier:
		return 400
	case AuthErr:
		return 401
	case PermissionErr:
		return 403
	case NotFound:
		return 404
	case DuplicateVersion:
		return 409
	case StorageErr:
		return 502
	default:
		return 500
	}
}

// Package errors defines structured error types for the row engine.
//
// Every error carries an [ErrorCode] and a set of diagnostic details (offending
// key, slot, bucket count, field) so callers decide what to log.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// ErrorCode defines specific error types for the engine.
type ErrorCode string

const (
	// ErrInvalidKey is returned when a key value is not a supported key representation.
	ErrInvalidKey ErrorCode = "INVALID_KEY"
	// ErrUnsupportedOperation is returned for operations the table does not support.
	ErrUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	// ErrUnrecognizedDataType is returned when a data type tag is outside the known set.
	ErrUnrecognizedDataType ErrorCode = "UNRECOGNIZED_DATA_TYPE"
	// ErrBucketIndexFault is returned when a bucket slot cannot be computed.
	ErrBucketIndexFault ErrorCode = "BUCKET_INDEX_FAULT"
	// ErrFieldNotFound is returned when a field index or name is not in the schema.
	ErrFieldNotFound ErrorCode = "FIELD_NOT_FOUND"
	// ErrIndexOutOfRange is returned when a row or slot position is outside the table.
	ErrIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"
	// ErrStaleRow is returned when a row view does not belong to the table.
	ErrStaleRow ErrorCode = "STALE_ROW"
	// ErrSQLSinkFailed is returned when the SQL mirror rejected a statement.
	ErrSQLSinkFailed ErrorCode = "SQL_SINK_FAILED"

	// ErrInvalidFormat is returned when a persisted file is malformed.
	ErrInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrStorageError is returned when a storage operation fails.
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrValidationFailed is returned when input data fails validation.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// Error implements the error interface so a bare code can be used as an
// [errors.Is] target.
func (c ErrorCode) Error() string {
	return string(c)
}

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is this error's code.
func (e *Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ""
}

// Predefined error constructors for common cases

// InvalidKey creates an error for a key of an unsupported type.
func InvalidKey(key any) *Error {
	return New(ErrInvalidKey, fmt.Sprintf("invalid primary key: [%T] %v", key, key)).
		WithDetail("key", key).
		WithDetail("type", fmt.Sprintf("%T", key))
}

// Unsupported creates an error for an operation the table cannot perform.
func Unsupported(message string) *Error {
	return New(ErrUnsupportedOperation, message)
}

// UnrecognizedDataType creates an error for an unknown data type tag.
func UnrecognizedDataType(tag uint32) *Error {
	return New(ErrUnrecognizedDataType, fmt.Sprintf("unrecognized data type %d", tag)).
		WithDetail("data_type", tag)
}

// BucketIndexFault creates an error for a slot computation that fell outside the bucket array.
func BucketIndexFault(key any, index uint32, slot, bucketCount int) *Error {
	return New(ErrBucketIndexFault, fmt.Sprintf("bucket index fault: %v [%d] -> %d / %d", key, index, slot, bucketCount)).
		WithDetails(map[string]any{
			"key":          key,
			"index":        index,
			"slot":         slot,
			"bucket_count": bucketCount,
		})
}

// FieldNotFound creates an error for a missing field name.
func FieldNotFound(name string) *Error {
	return New(ErrFieldNotFound, fmt.Sprintf("field %q not found", name)).WithDetail("field", name)
}

// FieldIndexOutOfRange creates an error for a field index outside the schema.
func FieldIndexOutOfRange(index, count int) *Error {
	return New(ErrFieldNotFound, fmt.Sprintf("field index %d out of range [0, %d)", index, count)).
		WithDetail("index", index).
		WithDetail("field_count", count)
}

// IndexOutOfRange creates an error for a row or slot position outside the table.
func IndexOutOfRange(what string, index int) *Error {
	return New(ErrIndexOutOfRange, fmt.Sprintf("%s index %d out of range", what, index)).
		WithDetail("index", index)
}

// StaleRow creates an error for a row view that does not refer to a row of the table.
func StaleRow(table string) *Error {
	return New(ErrStaleRow, fmt.Sprintf("row does not belong to table %q", table)).WithDetail("table", table)
}

// InvalidFormat creates an error for a malformed persisted file.
func InvalidFormat(message string) *Error {
	return New(ErrInvalidFormat, message)
}

// Storage creates an error wrapping a failed storage operation.
func Storage(message string, err error) *Error {
	return New(ErrStorageError, message).Wrap(err)
}

// Validation creates an error for input that failed validation.
func Validation(message string) *Error {
	return New(ErrValidationFailed, message)
}

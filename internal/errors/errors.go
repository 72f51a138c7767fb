// Package errors provides structured application errors shared by the HTTP,
// gRPC, MCP and CLI surfaces. Every error kind a user can see maps to a Code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain identifies our errors inside gRPC ErrorInfo details.
const Domain = "screenroaster"

// Code classifies an AppError.
type Code int32

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	NotFound
	Cancelled
	AuthorizationFailed
	CaptureFailed
	SessionBusy
	DeleteFailed
	OpenFailed
	ShareFailed
	ConfigInvalid
)

var codeNames = map[Code]string{
	Unknown:             "UNKNOWN",
	Internal:            "INTERNAL",
	InvalidArgument:     "INVALID_ARGUMENT",
	NotFound:            "NOT_FOUND",
	Cancelled:           "CANCELLED",
	AuthorizationFailed: "AUTHORIZATION_FAILED",
	CaptureFailed:       "CAPTURE_FAILED",
	SessionBusy:         "SESSION_BUSY",
	DeleteFailed:        "DELETE_FAILED",
	OpenFailed:          "OPEN_FAILED",
	ShareFailed:         "SHARE_FAILED",
	ConfigInvalid:       "CONFIG_INVALID",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return codeNames[Unknown]
}

// ParseCode is the inverse of Code.String. Unrecognised names map to Unknown.
func ParseCode(s string) Code {
	for c, name := range codeNames {
		if name == s {
			return c
		}
	}
	return Unknown
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:             codes.Unknown,
	Internal:            codes.Internal,
	InvalidArgument:     codes.InvalidArgument,
	NotFound:            codes.NotFound,
	Cancelled:           codes.Canceled,
	AuthorizationFailed: codes.PermissionDenied,
	CaptureFailed:       codes.Internal,
	SessionBusy:         codes.ResourceExhausted,
	DeleteFailed:        codes.NotFound,
	OpenFailed:          codes.FailedPrecondition,
	ShareFailed:         codes.FailedPrecondition,
	ConfigInvalid:       codes.InvalidArgument,
}

var httpStatusMap = map[Code]int{
	Unknown:             http.StatusInternalServerError,
	Internal:            http.StatusInternalServerError,
	InvalidArgument:     http.StatusBadRequest,
	NotFound:            http.StatusNotFound,
	Cancelled:           499,
	AuthorizationFailed: http.StatusForbidden,
	CaptureFailed:       http.StatusInternalServerError,
	SessionBusy:         http.StatusConflict,
	DeleteFailed:        http.StatusNotFound,
	OpenFailed:          http.StatusUnprocessableEntity,
	ShareFailed:         http.StatusUnprocessableEntity,
	ConfigInvalid:       http.StatusBadRequest,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// UserMessage is the one-line message shown to a person.
func (e *AppError) UserMessage() string {
	if e.Cause != nil && e.Code == CaptureFailed {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the corresponding HTTP status code.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns a gRPC status carrying an ErrorInfo detail, so the code
// survives the wire.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.UserMessage())
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   e.Code.String(),
		Domain:   Domain,
		Metadata: e.Metadata,
	})
	if err != nil {
		return st
	}
	return withInfo
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, Unknown for foreign errors and nil.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// FromGRPCError rebuilds an AppError from a gRPC error.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return &AppError{
				Code:     ParseCode(info.GetReason()),
				Message:  st.Message(),
				Metadata: info.GetMetadata(),
			}
		}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NotFound
	case codes.Canceled, codes.DeadlineExceeded:
		return Cancelled
	case codes.PermissionDenied, codes.Unauthenticated:
		return AuthorizationFailed
	case codes.ResourceExhausted:
		return SessionBusy
	case codes.Internal:
		return Internal
	default:
		return Unknown
	}
}

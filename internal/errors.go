package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeUnprocessable ErrorType = "UNPROCESSABLE_ENTITY"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal      ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidBody      ErrorCode = "INVALID_BODY"
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrCodeInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrCodeInvalidFile      ErrorCode = "INVALID_FILE"
	ErrCodeInvalidParent    ErrorCode = "INVALID_PARENT"
	ErrCodeDeleteFailed     ErrorCode = "DELETE_FAILED"

	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeDuplicate        ErrorCode = "DUPLICATE"
	ErrCodeTypeMismatch     ErrorCode = "TYPE_MISMATCH"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"

	ErrCodeStorageFailed ErrorCode = "STORAGE_FAILED"
)

// AppError is the error type that crosses layers. Message is an English message key
// which the transport layer localizes before rendering; Args fill its verbs.
type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Args       []any       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Text()
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Text(), e.Cause)
	}
	return e.Text()
}

// Text renders Message with Args without localization.
func (e *AppError) Text() string {
	if len(e.Args) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Args...)
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Text()
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Text()
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Text()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithArgs(args ...any) *AppError {
	e.Args = args
	return e
}

// FieldErrors returns the validation entries attached to the error, if any.
func (e *AppError) FieldErrors() []ValidationError {
	if v, ok := e.Details.(ValidationErrors); ok {
		return v.Errors
	}
	return nil
}

// ValidationError locates a failure either in the request document (Pointer) or in
// the query string (Parameter).
type ValidationError struct {
	Field     string `json:"field"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
	Args      []any  `json:"-"`
}

func (v ValidationError) Text() string {
	if len(v.Args) == 0 {
		return v.Message
	}
	return fmt.Sprintf(v.Message, v.Args...)
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// AttributePointer is the JSON pointer of a resource attribute inside a request document.
func AttributePointer(field string) string {
	return "/data/attributes/" + field
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code), Pointer: AttributePointer(field)},
			},
		},
	}
}

// NewParameterError reports an unusable query parameter such as filter[foo] or sort.
func NewParameterError(parameter, message string, args ...any) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeInvalidParameter,
		Message:    "Invalid query parameter",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: parameter, Message: message, Code: string(ErrCodeInvalidParameter), Parameter: parameter, Args: args},
			},
		},
	}
}

// NewUnprocessableError carries attribute level failures of a create/update document.
func NewUnprocessableError(errs []ValidationError) *AppError {
	return &AppError{
		Type:       ErrorTypeUnprocessable,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusUnprocessableEntity,
		Details:    ValidationErrors{Errors: errs},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewDeleteFailedError hides the storage error behind a generic 400.
func NewDeleteFailedError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeDeleteFailed,
		Message:    "Delete failed",
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// Sentinel errors are shared values; use errors.Is or compare Code.
var (
	ErrUnauthenticated = NewUnauthorizedError("Unauthenticated.", ErrCodeUnauthenticated)
	ErrForbidden       = NewForbiddenError("This action is unauthorized.", ErrCodeForbidden)
	ErrNotFound        = NewNotFoundError("Resource not found", ErrCodeResourceNotFound)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status an error maps to, 500 for unknown errors.
func StatusOf(err error) int {
	if appErr, ok := IsAppError(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Text(),
		Details: e.Details,
	})
}

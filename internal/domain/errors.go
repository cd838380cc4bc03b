package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of failure codes reported to the host.
type ErrorCode int

const (
	CodeLocationUnknown        ErrorCode = 0
	CodePermissionDenied       ErrorCode = 1
	CodeNetworkError           ErrorCode = 2
	CodeLocationClientIsNull   ErrorCode = 3
	CodeLocationDisabled       ErrorCode = 4
	CodeLocationIsNull         ErrorCode = 5
	CodeCurrentLocationFailed  ErrorCode = 6
	CodeLocationSettingsFailed ErrorCode = 7
	CodeLocationTimeout        ErrorCode = 408
)

var codeNames = map[ErrorCode]string{
	CodeLocationUnknown:        "LOCATION_UNKNOWN",
	CodePermissionDenied:       "PERMISSION_DENIED",
	CodeNetworkError:           "NETWORK_ERROR",
	CodeLocationClientIsNull:   "LOCATION_CLIENT_IS_NULL",
	CodeLocationDisabled:       "LOCATION_DISABLED",
	CodeLocationIsNull:         "LOCATION_IS_NULL",
	CodeCurrentLocationFailed:  "CURRENT_LOCATION_FAILED",
	CodeLocationSettingsFailed: "LOCATION_SETTINGS_FAILED",
	CodeLocationTimeout:        "LOCATION_TIMEOUT",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// LocationError is a recognized failure, classified where it was detected.
// Two LocationErrors match under errors.Is when their codes are equal, so the
// sentinels below can be used to test a returned error's kind.
type LocationError struct {
	Code ErrorCode
	Err  error
}

// NewLocationError wraps cause with a failure code. cause may be nil.
func NewLocationError(code ErrorCode, cause error) *LocationError {
	return &LocationError{Code: code, Err: cause}
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *LocationError) Unwrap() error { return e.Err }

func (e *LocationError) Is(target error) bool {
	t, ok := target.(*LocationError)
	return ok && t.Code == e.Code
}

var (
	ErrPermissionDenied           = &LocationError{Code: CodePermissionDenied}
	ErrLocationServiceUnavailable = &LocationError{Code: CodeLocationClientIsNull}
	ErrLocationDisabled           = &LocationError{Code: CodeLocationDisabled}
	ErrLocationResultNull         = &LocationError{Code: CodeLocationIsNull}
	ErrLocationAcquisitionFailed  = &LocationError{Code: CodeCurrentLocationFailed}
	ErrLocationSettingsFailed     = &LocationError{Code: CodeLocationSettingsFailed}
	ErrLocationTimeout            = &LocationError{Code: CodeLocationTimeout}
)

// CodeOf extracts the failure code from err, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	var le *LocationError
	if errors.As(err, &le) {
		return le.Code, true
	}
	return CodeLocationUnknown, false
}

// PlatformError preserves an unrecognized platform failure for diagnostics.
type PlatformError struct {
	ExceptionType string `json:"exceptionType"`
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
}

func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.ExceptionType, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.ExceptionType, e.Message)
}

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// Failure is the error payload handed to the host. Recognized conditions
// carry a Code; anything else is preserved in Platform.
type Failure struct {
	Code     domain.ErrorCode
	Message  string
	Platform *domain.PlatformError
}

func (f Failure) Error() string {
	if f.Platform != nil {
		return f.Platform.Error()
	}
	if f.Message != "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
	return f.Code.String()
}

// MarshalJSON emits {exceptionType, message, code?} for platform errors and
// {code, error, message} for recognized ones.
func (f Failure) MarshalJSON() ([]byte, error) {
	if f.Platform != nil {
		return json.Marshal(f.Platform)
	}
	return json.Marshal(struct {
		Code    int    `json:"code"`
		Error   string `json:"error"`
		Message string `json:"message,omitempty"`
	}{Code: int(f.Code), Error: f.Code.String(), Message: f.Message})
}

// Classify maps an error from the core onto the host payload.
func Classify(err error) Failure {
	var le *domain.LocationError
	if errors.As(err, &le) {
		f := Failure{Code: le.Code}
		if le.Err != nil {
			f.Message = le.Err.Error()
		}
		return f
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == platform.StatusSettingsChangeUnavailable {
			return Failure{Code: domain.CodeLocationSettingsFailed, Message: apiErr.Message}
		}
		return Failure{Platform: &domain.PlatformError{
			ExceptionType: "ApiException",
			Message:       apiErr.Message,
			Code:          strconv.Itoa(apiErr.StatusCode),
		}}
	}

	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return Failure{Platform: pe}
	}

	return Failure{Platform: &domain.PlatformError{
		ExceptionType: fmt.Sprintf("%T", err),
		Message:       err.Error(),
	}}
}

package weread

import (
	"errors"
	"fmt"
)

// Error codes WeRead returns when the session cookie is no longer valid.
const (
	errCodeSessionTimeout = -2012
	errCodeAuthFailed     = -2010
)

// ErrSessionExpired indicates the stored WeRead session cookie is invalid or
// expired. The gateway only reports this; clearing the stored session is the
// orchestrator's call.
var ErrSessionExpired = errors.New("weread session expired or invalid")

// APIError is a non-success application response from the WeRead API.
type APIError struct {
	StatusCode int
	ErrCode    int
	ErrMsg     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weread API error: HTTP %d, errcode %d: %s", e.StatusCode, e.ErrCode, e.ErrMsg)
}

// asAPIError classifies a failed response body, mapping the two session
// error codes onto ErrSessionExpired.
func asAPIError(statusCode, errCode int, errMsg string) error {
	if errCode == errCodeSessionTimeout || errCode == errCodeAuthFailed {
		return fmt.Errorf("%w (errcode %d)", ErrSessionExpired, errCode)
	}
	return &APIError{StatusCode: statusCode, ErrCode: errCode, ErrMsg: errMsg}
}

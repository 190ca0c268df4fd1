package batteryapi

import (
	"errors"
	"fmt"

	"github.com/xiaoha/batterywidget/pkg/types"
)

// FetchError is returned by FetchStatus for every failure. Reason is the
// category shown to the user; the wrapped error is for logs only.
type FetchError struct {
	Reason types.Reason
	// StatusCode is the HTTP status, when a response was received.
	StatusCode int
	// Code is the application-level code from the response envelope.
	Code    int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	case e.StatusCode != 0 && e.Reason == types.ReasonNetwork:
		return fmt.Sprintf("%s: got http %d", e.Reason, e.StatusCode)
	default:
		return fmt.Sprintf("%s: code %d: %s", e.Reason, e.Code, e.Message)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf maps any error to a display reason. Errors that did not come
// from FetchStatus are treated as ReasonFailed.
func ReasonOf(err error) types.Reason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return types.ReasonFailed
}

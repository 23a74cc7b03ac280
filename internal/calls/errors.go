package calls

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when no usable credential was configured.
// Providers return it before touching the network.
var ErrAuthentication = errors.New("authentication: no api credential configured")

// UpstreamError reports a call the external service rejected or could not serve.
type UpstreamError struct {
	Provider string
	Status   int // 0 when the request never got a response
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: create call failed (status=%d): %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s: create call failed: %s", e.Provider, msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

package calls

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Dispatcher places calls with one fixed route and assistant per process.
type Dispatcher struct {
	Provider      Provider
	PhoneNumberID string
	AssistantID   string
	Log           zerolog.Logger
}

// Validate reports a missing credential before missing route or assistant ids.
func (d *Dispatcher) Validate() error {
	if d.Provider == nil {
		return errors.New("dispatcher: provider is nil")
	}
	if cc, ok := d.Provider.(CredentialChecker); ok {
		if err := cc.CheckCredentials(); err != nil {
			return err
		}
	}
	if d.PhoneNumberID == "" {
		return errors.New("dispatcher: phone number id (route) is required")
	}
	if d.AssistantID == "" {
		return errors.New("dispatcher: assistant id is required")
	}
	return nil
}

// CreateCall issues one call to number. Failures are returned as-is, never retried.
func (d *Dispatcher) CreateCall(ctx context.Context, number string) (CallResult, error) {
	if err := d.Validate(); err != nil {
		return CallResult{}, err
	}
	req := CallRequest{
		PhoneNumberID: d.PhoneNumberID,
		AssistantID:   d.AssistantID,
		Customer:      number,
	}
	res, err := d.Provider.CreateCall(ctx, req)
	if err != nil {
		if IsAuthentication(err) || IsUpstream(err) {
			return CallResult{}, err
		}
		return CallResult{}, &UpstreamError{Provider: d.Provider.Name(), Err: err}
	}
	if res.ID == "" {
		return CallResult{}, &UpstreamError{Provider: d.Provider.Name(), Message: "response carried no call id"}
	}
	if res.Provider == "" {
		res.Provider = d.Provider.Name()
	}
	d.Log.Info().
		Str("provider", res.Provider).
		Str("call_id", res.ID).
		Str("phone", number).
		Msg("call created")
	return res, nil
}

func (r CallResult) String() string {
	return fmt.Sprintf("%s call %s", r.Provider, r.ID)
}

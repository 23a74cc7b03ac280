package calls

import "context"

// CallRequest is built fresh for every outbound call.
type CallRequest struct {
	// PhoneNumberID identifies the outbound line the call is placed from.
	PhoneNumberID string
	// AssistantID selects the voice-AI behaviour profile.
	AssistantID string
	// Customer is the destination number in E.164 form.
	Customer string
}

type CallResult struct {
	ID       string
	Provider string
}

// Provider places a single call against an external calling service.
type Provider interface {
	Name() string
	CreateCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// CredentialChecker is implemented by providers that can tell, without a
// network call, that no credential is configured.
type CredentialChecker interface {
	CheckCredentials() error
}

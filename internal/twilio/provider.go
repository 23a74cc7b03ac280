package twilio

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/example/call-scheduler/internal/calls"
)

// callCreator is the subset of the Twilio v2010 API the provider needs.
type callCreator interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// Provider places calls through Twilio Programmable Voice. The route identifier
// is the Twilio "From" number and the assistant identifier is the voice webhook
// URL that drives the conversation.
type Provider struct {
	api        callCreator
	accountSID string
	authToken  string
}

type Credentials struct {
	AccountSID string
	AuthToken  string
}

func New(creds Credentials) *Provider {
	sid := strings.TrimSpace(creds.AccountSID)
	tok := strings.TrimSpace(creds.AuthToken)
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: sid,
		Password: tok,
	})
	return &Provider{api: rc.Api, accountSID: sid, authToken: tok}
}

func (p *Provider) Name() string { return "twilio" }

func (p *Provider) CheckCredentials() error {
	if p.accountSID == "" || p.authToken == "" {
		return calls.ErrAuthentication
	}
	return nil
}

func (p *Provider) CreateCall(ctx context.Context, req calls.CallRequest) (calls.CallResult, error) {
	if err := p.CheckCredentials(); err != nil {
		return calls.CallResult{}, err
	}
	// twilio-go has no context support; honour cancellation before dialing out.
	if err := ctx.Err(); err != nil {
		return calls.CallResult{}, &calls.UpstreamError{Provider: p.Name(), Err: err}
	}

	resp, err := p.api.CreateCall(buildParams(req))
	if err != nil {
		var tre *twilioclient.TwilioRestError
		if errors.As(err, &tre) {
			return calls.CallResult{}, &calls.UpstreamError{Provider: p.Name(), Status: tre.Status, Message: tre.Message, Err: err}
		}
		return calls.CallResult{}, &calls.UpstreamError{Provider: p.Name(), Err: err}
	}
	if resp == nil || resp.Sid == nil {
		return calls.CallResult{}, &calls.UpstreamError{Provider: p.Name(), Message: "response carried no call sid"}
	}
	return calls.CallResult{ID: *resp.Sid, Provider: p.Name()}, nil
}

func buildParams(req calls.CallRequest) *twilioApi.CreateCallParams {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.Customer)
	params.SetFrom(req.PhoneNumberID)
	params.SetUrl(req.AssistantID)
	return params
}

package twilio

import (
	"context"
	"errors"
	"testing"

	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/call-scheduler/internal/calls"
)

type fakeAPI struct {
	resp   *twilioApi.ApiV2010Call
	err    error
	params []*twilioApi.CreateCallParams
}

func (f *fakeAPI) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.params = append(f.params, params)
	return f.resp, f.err
}

var req = calls.CallRequest{PhoneNumberID: "+15005550006", AssistantID: "https://example.com/voice", Customer: "+14085551234"}

func TestCreateCall(t *testing.T) {
	sid := "CA123"
	api := &fakeAPI{resp: &twilioApi.ApiV2010Call{Sid: &sid}}
	p := &Provider{api: api, accountSID: "AC1", authToken: "tok"}

	res, err := p.CreateCall(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, calls.CallResult{ID: "CA123", Provider: "twilio"}, res)

	require.Len(t, api.params, 1)
	got := api.params[0]
	assert.Equal(t, "+14085551234", *got.To)
	assert.Equal(t, "+15005550006", *got.From)
	assert.Equal(t, "https://example.com/voice", *got.Url)
}

func TestCreateCallMissingCredentials(t *testing.T) {
	api := &fakeAPI{}
	for _, p := range []*Provider{
		{api: api, accountSID: "", authToken: "tok"},
		{api: api, accountSID: "AC1", authToken: ""},
	} {
		_, err := p.CreateCall(context.Background(), req)
		require.ErrorIs(t, err, calls.ErrAuthentication)
		assert.ErrorIs(t, p.CheckCredentials(), calls.ErrAuthentication)
	}
	assert.Empty(t, api.params)
}

func TestNewTrimsCredentials(t *testing.T) {
	p := New(Credentials{AccountSID: "  ", AuthToken: "tok"})
	_, err := p.CreateCall(context.Background(), req)
	require.ErrorIs(t, err, calls.ErrAuthentication)
}

func TestCreateCallRestError(t *testing.T) {
	api := &fakeAPI{err: &twilioclient.TwilioRestError{Status: 400, Code: 21211, Message: "The 'To' number is not a valid phone number."}}
	p := &Provider{api: api, accountSID: "AC1", authToken: "tok"}

	_, err := p.CreateCall(context.Background(), req)
	var ue *calls.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 400, ue.Status)
	assert.Equal(t, "The 'To' number is not a valid phone number.", ue.Message)
}

func TestCreateCallTransportError(t *testing.T) {
	api := &fakeAPI{err: errors.New("dial tcp: i/o timeout")}
	p := &Provider{api: api, accountSID: "AC1", authToken: "tok"}

	_, err := p.CreateCall(context.Background(), req)
	assert.True(t, calls.IsUpstream(err))
	assert.ErrorContains(t, err, "i/o timeout")
}

func TestCreateCallCancelled(t *testing.T) {
	api := &fakeAPI{}
	p := &Provider{api: api, accountSID: "AC1", authToken: "tok"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateCall(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.params)
}

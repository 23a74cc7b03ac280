package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/call-scheduler/internal/calls"
)

const DefaultBaseURL = "https://api.vapi.ai"

// Client is a minimal Vapi REST client. Only call creation is implemented.
type Client struct {
	hc     *http.Client
	base   string
	apiKey string
}

// Options configure a Client. Empty BaseURL means DefaultBaseURL; zero Timeout means 30s.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New builds a Client. A blank APIKey is accepted; CheckCredentials and CreateCall report it.
func New(opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		hc:     &http.Client{Timeout: timeout},
		base:   strings.TrimRight(base, "/"),
		apiKey: strings.TrimSpace(opts.APIKey),
	}
}

func (c *Client) Name() string { return "vapi" }

func (c *Client) CheckCredentials() error {
	if c.apiKey == "" {
		return calls.ErrAuthentication
	}
	return nil
}

type createCallBody struct {
	PhoneNumberID string   `json:"phoneNumberId"`
	AssistantID   string   `json:"assistantId"`
	Customer      customer `json:"customer"`
}

type customer struct {
	Number string `json:"number"`
}

type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) CreateCall(ctx context.Context, req calls.CallRequest) (calls.CallResult, error) {
	if err := c.CheckCredentials(); err != nil {
		return calls.CallResult{}, err
	}
	body, err := json.Marshal(createCallBody{
		PhoneNumberID: req.PhoneNumberID,
		AssistantID:   req.AssistantID,
		Customer:      customer{Number: req.Customer},
	})
	if err != nil {
		return calls.CallResult{}, err
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/call", body)
	if err != nil {
		return calls.CallResult{}, &calls.UpstreamError{Provider: c.Name(), Err: err}
	}
	if status < 200 || status >= 300 {
		return calls.CallResult{}, &calls.UpstreamError{
			Provider: c.Name(),
			Status:   status,
			Message:  errorMessage(respBody),
		}
	}

	var res callResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return calls.CallResult{}, &calls.UpstreamError{Provider: c.Name(), Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return calls.CallResult{ID: res.ID, Provider: c.Name()}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("authorization", "Bearer "+c.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

// errorMessage pulls "message" out of a Vapi error body. The field is either a
// string or a list of validation messages.
func errorMessage(body []byte) string {
	var e struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil && s != "" {
		return s
	}
	var list []string
	if err := json.Unmarshal(e.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	if e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

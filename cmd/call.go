package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/call-scheduler/internal/calls"
	"github.com/example/call-scheduler/internal/config"
	"github.com/example/call-scheduler/internal/phone"
	"github.com/example/call-scheduler/internal/twilio"
	"github.com/example/call-scheduler/internal/vapi"
)

func newCallCmd(g *globalFlags) *cobra.Command {
	var number string

	c := &cobra.Command{
		Use:   "call",
		Short: "Place one outbound call now",
		Long: `Place one outbound call now.

Needs the provider credential (VAPI_API_KEY, or TWILIO_ACCOUNT_SID and
TWILIO_AUTH_TOKEN) plus the route and assistant ids. A missing credential is
reported first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return err
			}
			d, err := newDispatcher(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if cfg.CallTimeout > 0 {
				var tcancel context.CancelFunc
				ctx, tcancel = context.WithTimeout(ctx, cfg.CallTimeout)
				defer tcancel()
			}

			to := phone.Normalize(number, cfg.DefaultCountryCode)
			res, err := d.CreateCall(ctx, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Call created: %s for number %s\n", res.ID, to)
			return nil
		},
	}

	c.Flags().StringVar(&number, "phone", "", "recipient phone number (country code added when missing)")
	_ = c.MarkFlagRequired("phone")
	return c
}

// newDispatcher wires the configured provider. A missing credential is
// reported as calls.ErrAuthentication ahead of missing route or assistant ids.
func newDispatcher(cfg config.Config, log zerolog.Logger) (*calls.Dispatcher, error) {
	var p calls.Provider
	switch cfg.Provider {
	case config.ProviderTwilio:
		p = twilio.New(twilio.Credentials{AccountSID: cfg.TwilioAccountSID, AuthToken: cfg.TwilioAuthToken})
	default:
		p = vapi.New(vapi.Options{APIKey: cfg.VapiAPIKey, BaseURL: cfg.VapiBaseURL, Timeout: cfg.CallTimeout})
	}
	d := &calls.Dispatcher{
		Provider:      p,
		PhoneNumberID: cfg.Route(),
		AssistantID:   cfg.Assistant(),
		Log:           log.With().Str("component", "dispatcher").Logger(),
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, err)
	}
	return d, nil
}

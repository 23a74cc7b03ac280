package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

const (
	ProviderVapi   = "vapi"
	ProviderTwilio = "twilio"
)

type Config struct {
	Provider string

	VapiAPIKey        string
	VapiBaseURL       string
	VapiPhoneNumberID string
	VapiAssistantID   string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioVoiceURL   string

	// scheduler
	Timezone           string
	Location           *time.Location
	DefaultCountryCode string
	Recurrence         string
	PollInterval       time.Duration

	CallTimeout    time.Duration
	CallRatePerSec float64

	DatabaseURL string

	LogLevel  string
	LogFormat string
}

// EnvFile is loaded before reading the environment when it exists.
var EnvFile = ".env"

func defaults() Config {
	return Config{
		Provider:           ProviderVapi,
		VapiBaseURL:        "https://api.vapi.ai",
		Timezone:           "America/Los_Angeles",
		DefaultCountryCode: "+1",
		Recurrence:         "daily",
		PollInterval:       30 * time.Second,
		CallTimeout:        60 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

func FromEnv() (Config, error) {
	return Load("")
}

// Load layers defaults, the optional YAML file at path (or $CALLSCHED_CONFIG),
// then environment variables. A missing API key is not an error here; it is
// reported when a call is attempted.
func Load(path string) (Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	cfg := defaults()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CALLSCHED_CONFIG"))
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Route is the outbound line identifier for the selected provider.
func (c Config) Route() string {
	if c.Provider == ProviderTwilio {
		return c.TwilioFromNumber
	}
	return c.VapiPhoneNumberID
}

// Assistant is the behaviour identifier for the selected provider.
func (c Config) Assistant() string {
	if c.Provider == ProviderTwilio {
		return c.TwilioVoiceURL
	}
	return c.VapiAssistantID
}

func (c *Config) finish() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderVapi, ProviderTwilio:
	default:
		return fmt.Errorf("invalid CALLSCHED_PROVIDER %q (want vapi or twilio)", c.Provider)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid SCHED_TIMEZONE: %w", err)
	}
	c.Location = loc
	if c.PollInterval < time.Second {
		return fmt.Errorf("invalid SCHED_POLL_SECONDS: poll interval must be at least 1s")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("invalid CALL_TIMEOUT: must not be negative")
	}
	if c.CallRatePerSec < 0 {
		return fmt.Errorf("invalid CALL_RATE_PER_SEC: must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Provider, "CALLSCHED_PROVIDER")
	setString(&cfg.VapiAPIKey, "VAPI_API_KEY")
	setString(&cfg.VapiBaseURL, "VAPI_BASE_URL")
	setString(&cfg.VapiPhoneNumberID, "VAPI_PHONE_NUMBER_ID")
	setString(&cfg.VapiAssistantID, "VAPI_ASSISTANT_ID")
	setString(&cfg.TwilioAccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.TwilioAuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.TwilioFromNumber, "TWILIO_FROM_NUMBER")
	setString(&cfg.TwilioVoiceURL, "TWILIO_VOICE_URL")
	setString(&cfg.Timezone, "SCHED_TIMEZONE")
	setString(&cfg.DefaultCountryCode, "DEFAULT_COUNTRY_CODE")
	setString(&cfg.Recurrence, "SCHED_RECURRENCE")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := getenv("SCHED_POLL_SECONDS", ""); v != "" {
		pollSec, err := strconv.Atoi(v)
		if err != nil || pollSec < 1 {
			return fmt.Errorf("invalid SCHED_POLL_SECONDS")
		}
		cfg.PollInterval = time.Duration(pollSec) * time.Second
	}
	if v := getenv("CALL_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CALL_TIMEOUT: %w", err)
		}
		cfg.CallTimeout = d
	}
	if v := getenv("CALL_RATE_PER_SEC", ""); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CALL_RATE_PER_SEC: %w", err)
		}
		cfg.CallRatePerSec = r
	}
	return nil
}

// fileConfig mirrors Config as YAML. Durations are Go duration strings.
type fileConfig struct {
	Provider string `yaml:"provider"`
	Vapi     struct {
		APIKey        string `yaml:"api_key"`
		BaseURL       string `yaml:"base_url"`
		PhoneNumberID string `yaml:"phone_number_id"`
		AssistantID   string `yaml:"assistant_id"`
	} `yaml:"vapi"`
	Twilio struct {
		AccountSID string `yaml:"account_sid"`
		AuthToken  string `yaml:"auth_token"`
		FromNumber string `yaml:"from_number"`
		VoiceURL   string `yaml:"voice_url"`
	} `yaml:"twilio"`
	Scheduler struct {
		Timezone           string `yaml:"timezone"`
		DefaultCountryCode string `yaml:"default_country_code"`
		Recurrence         string `yaml:"recurrence"`
		PollInterval       string `yaml:"poll_interval"`
	} `yaml:"scheduler"`
	Calls struct {
		Timeout    string  `yaml:"timeout"`
		RatePerSec float64 `yaml:"rate_per_sec"`
	} `yaml:"calls"`
	DatabaseURL string `yaml:"database_url"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	merge(&cfg.Provider, fc.Provider)
	merge(&cfg.VapiAPIKey, fc.Vapi.APIKey)
	merge(&cfg.VapiBaseURL, fc.Vapi.BaseURL)
	merge(&cfg.VapiPhoneNumberID, fc.Vapi.PhoneNumberID)
	merge(&cfg.VapiAssistantID, fc.Vapi.AssistantID)
	merge(&cfg.TwilioAccountSID, fc.Twilio.AccountSID)
	merge(&cfg.TwilioAuthToken, fc.Twilio.AuthToken)
	merge(&cfg.TwilioFromNumber, fc.Twilio.FromNumber)
	merge(&cfg.TwilioVoiceURL, fc.Twilio.VoiceURL)
	merge(&cfg.Timezone, fc.Scheduler.Timezone)
	merge(&cfg.DefaultCountryCode, fc.Scheduler.DefaultCountryCode)
	merge(&cfg.Recurrence, fc.Scheduler.Recurrence)
	merge(&cfg.DatabaseURL, fc.DatabaseURL)
	merge(&cfg.LogLevel, fc.Log.Level)
	merge(&cfg.LogFormat, fc.Log.Format)

	if v := strings.TrimSpace(fc.Scheduler.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config file %s: scheduler.poll_interval: %w", path, err)
		}
		cfg.PollInterval = d
	}
	if v := strings.TrimSpace(fc.Calls.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config file %s: calls.timeout: %w", path, err)
		}
		cfg.CallTimeout = d
	}
	if fc.Calls.RatePerSec != 0 {
		cfg.CallRatePerSec = fc.Calls.RatePerSec
	}
	return nil
}

func merge(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setString(dst *string, key string) {
	if v := getenv(key, ""); v != "" {
		*dst = v
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

package config

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tallyware/tally/pkg/client"
)

// Config is the tally CLI configuration, decoded from an HCL file.
type Config struct {
	// Tenant is the tenant identifier of the target environment.
	Tenant string `hcl:"tenant"`

	// Domain overrides the default service domain.
	Domain string `hcl:"domain,optional"`

	// BaseURL points the client at an explicit base URL instead of the
	// tenant host. Useful against test servers.
	BaseURL string `hcl:"base_url,optional"`

	// LogLevel sets the log verbosity (trace, debug, info, warn, error).
	LogLevel string `hcl:"log_level,optional"`

	// TimeoutSeconds bounds each request including retries.
	TimeoutSeconds int `hcl:"timeout_seconds,optional"`

	// MaxRetries bounds connection-error retries per request.
	MaxRetries int `hcl:"max_retries,optional"`

	BasicAuth *BasicAuthConfig `hcl:"basic_auth,block"`
	OAuth     *OAuthConfig     `hcl:"oauth,block"`
}

// BasicAuthConfig holds username and password credentials.
type BasicAuthConfig struct {
	Username string `hcl:"username"`
	Password string `hcl:"password"`
}

// OAuthConfig holds client-credentials grant settings.
type OAuthConfig struct {
	TokenURL     string `hcl:"token_url"`
	ClientID     string `hcl:"client_id"`
	ClientSecret string `hcl:"client_secret"`
}

// NewConfig parses the config file at path.
func NewConfig(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Tenant, validation.Required.When(c.BaseURL == "")),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.LogLevel,
			validation.In("", "trace", "debug", "info", "warn", "error")),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.BasicAuth == nil && c.OAuth == nil {
		return fmt.Errorf("invalid config: one of basic_auth or oauth is required")
	}
	if c.BasicAuth != nil && c.OAuth != nil {
		return fmt.Errorf("invalid config: basic_auth and oauth are mutually exclusive")
	}
	if c.OAuth != nil {
		if err := validation.ValidateStruct(c.OAuth,
			validation.Field(&c.OAuth.TokenURL, validation.Required, is.URL),
			validation.Field(&c.OAuth.ClientID, validation.Required),
			validation.Field(&c.OAuth.ClientSecret, validation.Required),
		); err != nil {
			return fmt.Errorf("invalid oauth config: %w", err)
		}
	}
	return nil
}

// Authenticator builds the client authenticator from the configured
// credentials.
func (c *Config) Authenticator() client.Authenticator {
	if c.OAuth != nil {
		cc := clientcredentials.Config{
			TokenURL:     c.OAuth.TokenURL,
			ClientID:     c.OAuth.ClientID,
			ClientSecret: c.OAuth.ClientSecret,
		}
		source := oauth2.ReuseTokenSource(nil, cc.TokenSource(context.Background()))
		return client.TokenAuth{Source: source}
	}
	return client.BasicAuth{
		Username: c.BasicAuth.Username,
		Password: c.BasicAuth.Password,
	}
}

// NewClient builds a client from the configuration.
func (c *Config) NewClient(logger hclog.Logger) (*client.Client, error) {
	return client.New(client.Config{
		Tenant:     c.Tenant,
		Domain:     c.Domain,
		BaseURL:    c.BaseURL,
		Auth:       c.Authenticator(),
		Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRetries: uint64(c.MaxRetries),
		Logger:     logger,
	})
}

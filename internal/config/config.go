// Package config supplies Azure DevOps credentials to the client and the
// sync service. Credentials live for the process and are never persisted
// by this module; the token is redacted by the sanitizer anywhere it could
// appear in output.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
)

// Environment variables read by FromEnv.
const (
	EnvOrganizationURL = "ADO_ORG_URL"
	EnvProject         = "ADO_PROJECT"
	EnvToken           = "ADO_TOKEN"
)

// Organization URLs must be one of the two hosted service forms.
var orgURLPattern = regexp.MustCompile(`^https://(dev\.azure\.com/[A-Za-z0-9][A-Za-z0-9._-]*|[A-Za-z0-9][A-Za-z0-9-]*\.visualstudio\.com)/?$`)

// Credentials identifies an organization, project, and the personal access
// token used to authenticate against it.
type Credentials struct {
	OrganizationURL string
	Project         string
	Token           string
}

// Validate checks that all fields are present and the organization URL
// matches https://dev.azure.com/<org> or https://<org>.visualstudio.com.
func (c Credentials) Validate() error {
	if c.OrganizationURL == "" || c.Project == "" || c.Token == "" {
		return &apierr.ConfigurationError{Reason: "organization URL, project, and token are all required"}
	}
	if !orgURLPattern.MatchString(c.OrganizationURL) {
		return &apierr.ConfigurationError{
			Reason: "organization URL must look like https://dev.azure.com/<org> or https://<org>.visualstudio.com",
		}
	}
	return nil
}

// Provider reports the currently configured credentials. ok is false while
// the integration is not configured; consumers such as the sync service
// suspend themselves until it becomes true.
type Provider interface {
	Current() (creds Credentials, ok bool)
}

// StaticProvider wraps a fixed set of credentials.
type StaticProvider struct {
	creds Credentials
}

// NewStaticProvider returns a provider that always reports creds.
func NewStaticProvider(creds Credentials) *StaticProvider {
	return &StaticProvider{creds: creds}
}

func (p *StaticProvider) Current() (Credentials, bool) {
	if p.creds.Validate() != nil {
		return Credentials{}, false
	}
	return p.creds, true
}

// EnvProvider re-reads the environment on every call so a configuration
// added after startup is picked up without a restart.
type EnvProvider struct{}

func (EnvProvider) Current() (Credentials, bool) {
	creds := FromEnv()
	if creds.Validate() != nil {
		return Credentials{}, false
	}
	return creds, true
}

// FromEnv reads credentials from the environment without validating them.
func FromEnv() Credentials {
	return Credentials{
		OrganizationURL: strings.TrimSpace(os.Getenv(EnvOrganizationURL)),
		Project:         strings.TrimSpace(os.Getenv(EnvProject)),
		Token:           strings.TrimSpace(os.Getenv(EnvToken)),
	}
}

// fileCredentials is the YAML config file shape. The token itself never
// lives in the file; tokenEnv names the environment variable holding it.
type fileCredentials struct {
	OrganizationURL string `yaml:"organizationUrl"`
	Project         string `yaml:"project"`
	TokenEnv        string `yaml:"tokenEnv"`
}

// LoadFile reads credentials from a YAML file, resolving the token from
// the environment variable the file names (default ADO_TOKEN).
func LoadFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, &apierr.ConfigurationError{Reason: fmt.Sprintf("read config file: %v", err)}
	}
	var fc fileCredentials
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Credentials{}, &apierr.ConfigurationError{Reason: fmt.Sprintf("parse config file: %v", err)}
	}
	tokenEnv := fc.TokenEnv
	if tokenEnv == "" {
		tokenEnv = EnvToken
	}
	return Credentials{
		OrganizationURL: strings.TrimSpace(fc.OrganizationURL),
		Project:         strings.TrimSpace(fc.Project),
		Token:           strings.TrimSpace(os.Getenv(tokenEnv)),
	}, nil
}

// Load resolves credentials from the optional config file and the
// environment, with environment values taking precedence. The result is
// not validated; callers validate at the point of use.
func Load(path string) (Credentials, error) {
	creds := Credentials{}
	if path != "" {
		fileCreds, err := LoadFile(path)
		if err != nil {
			return Credentials{}, err
		}
		creds = fileCreds
	}
	env := FromEnv()
	if env.OrganizationURL != "" {
		creds.OrganizationURL = env.OrganizationURL
	}
	if env.Project != "" {
		creds.Project = env.Project
	}
	if env.Token != "" {
		creds.Token = env.Token
	}
	return creds, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
)

func validCreds() Credentials {
	return Credentials{
		OrganizationURL: "https://dev.azure.com/acme",
		Project:         "Widgets",
		Token:           "pat",
	}
}

func TestValidate_AcceptedURLs(t *testing.T) {
	for _, u := range []string{
		"https://dev.azure.com/acme",
		"https://dev.azure.com/acme/",
		"https://acme.visualstudio.com",
		"https://acme-corp.visualstudio.com/",
	} {
		creds := validCreds()
		creds.OrganizationURL = u
		assert.NoError(t, creds.Validate(), "url %s", u)
	}
}

func TestValidate_RejectedURLs(t *testing.T) {
	for _, u := range []string{
		"http://dev.azure.com/acme",
		"https://dev.azure.com",
		"https://example.com/acme",
		"https://acme.visualstudio.com.evil.com",
		"dev.azure.com/acme",
		"",
	} {
		creds := validCreds()
		creds.OrganizationURL = u

		err := creds.Validate()
		var cfgErr *apierr.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, "url %q must be rejected", u)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	for name, mutate := range map[string]func(*Credentials){
		"project": func(c *Credentials) { c.Project = "" },
		"token":   func(c *Credentials) { c.Token = "" },
	} {
		creds := validCreds()
		mutate(&creds)

		var cfgErr *apierr.ConfigurationError
		assert.ErrorAs(t, creds.Validate(), &cfgErr, "missing %s", name)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv(EnvOrganizationURL, "https://dev.azure.com/acme")
	t.Setenv(EnvProject, "Widgets")
	t.Setenv(EnvToken, "pat")

	creds, ok := EnvProvider{}.Current()
	require.True(t, ok)
	assert.Equal(t, "Widgets", creds.Project)

	t.Setenv(EnvToken, "")
	_, ok = EnvProvider{}.Current()
	assert.False(t, ok, "missing token means not configured")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adopr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"organizationUrl: https://dev.azure.com/acme\nproject: Widgets\ntokenEnv: MY_PAT\n",
	), 0o600))
	t.Setenv("MY_PAT", "pat-from-env")

	creds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/acme", creds.OrganizationURL)
	assert.Equal(t, "Widgets", creds.Project)
	assert.Equal(t, "pat-from-env", creds.Token)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adopr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"organizationUrl: https://dev.azure.com/acme\nproject: Widgets\n",
	), 0o600))

	t.Setenv(EnvOrganizationURL, "")
	t.Setenv(EnvProject, "Gadgets")
	t.Setenv(EnvToken, "pat")

	creds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/acme", creds.OrganizationURL, "file value kept")
	assert.Equal(t, "Gadgets", creds.Project, "env wins over file")
	assert.Equal(t, "pat", creds.Token)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	var cfgErr *apierr.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func clearConnectorHostEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"REMOTE_CONNECTOR_WS_URL", "OAUTH_TOKEN_URL", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET",
		"OAUTH_SCOPE", "OAUTH_AUDIENCE", "OAUTH_RESOURCE", "CONNECTORS_DIR",
	} {
		t.Setenv(name, "")
	}
}

func TestConfigFromEnvBuildsSessionAndManifestDirs(t *testing.T) {
	clearConnectorHostEnv(t)
	t.Setenv("REMOTE_CONNECTOR_WS_URL", "wss://host.example/ws")
	t.Setenv("OAUTH_TOKEN_URL", "https://idp.example/token")
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "s3cr3t")
	t.Setenv("OAUTH_SCOPE", "connectors.read connectors.write")
	t.Setenv("OAUTH_AUDIENCE", "https://api.example/")
	t.Setenv("OAUTH_RESOURCE", "urn:connector-host")
	t.Setenv("CONNECTORS_DIR", "/etc/connector-host/manifests")

	c, err := configFromEnv("")
	require.NoError(t, err)
	require.Equal(t, "wss://host.example/ws", c.Session.URL)
	require.Equal(t, "https://idp.example/token", c.Session.TokenURL)
	require.Equal(t, "client-1", c.Session.ClientID)
	require.Equal(t, "s3cr3t", c.Session.ClientSecret)
	require.Equal(t, []string{"connectors.read", "connectors.write"}, c.Session.Scopes)
	require.Equal(t, "https://api.example/", c.Session.Audience)
	require.Equal(t, "urn:connector-host", c.Session.Resource)
	require.Equal(t, []string{"/etc/connector-host/manifests"}, c.ManifestDirs)
	require.NoError(t, c.Validate())
}

func TestConfigFromEnvFlagOverridesConnectorsDirEnv(t *testing.T) {
	clearConnectorHostEnv(t)
	t.Setenv("REMOTE_CONNECTOR_WS_URL", "wss://host.example/ws")
	t.Setenv("OAUTH_TOKEN_URL", "https://idp.example/token")
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "s3cr3t")
	t.Setenv("CONNECTORS_DIR", "/from/env")

	c, err := configFromEnv("/from/flag")
	require.NoError(t, err)
	require.Equal(t, []string{"/from/flag"}, c.ManifestDirs)
}

func TestConfigFromEnvFailsOnMissingRequiredVar(t *testing.T) {
	clearConnectorHostEnv(t)
	t.Setenv("REMOTE_CONNECTOR_WS_URL", "wss://host.example/ws")
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "s3cr3t")
	t.Setenv("CONNECTORS_DIR", "/etc/connector-host/manifests")

	_, err := configFromEnv("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OAUTH_TOKEN_URL")
}

func TestConfigFromEnvFailsOnMissingConnectorsDir(t *testing.T) {
	clearConnectorHostEnv(t)
	t.Setenv("REMOTE_CONNECTOR_WS_URL", "wss://host.example/ws")
	t.Setenv("OAUTH_TOKEN_URL", "https://idp.example/token")
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "s3cr3t")

	_, err := configFromEnv("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "CONNECTORS_DIR")
}

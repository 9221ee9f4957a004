package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/platform/config"
	"github.com/nathantilsley/update-agent/internal/platform/logger"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://cluster.example.com:6443
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: abc123
`

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	kubeconfig := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(kubeconfig, []byte(testKubeconfig), 0o600))
	return config.Config{
		CallbackEndpoint:           "https://hub.example.com/callback",
		ManifestFile:               "/etc/update-agent/manifest.yaml",
		CredentialProviderEndpoint: "https://creds.example.com",
		CredentialProviderAuth:     "token",
		LogLevel:                   "error",
		ReleaseDriver:              config.DriverSDK,
		Kubeconfig:                 kubeconfig,
		MaxConcurrency:             4,
		HTTPTimeout:                time.Second,
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd(config.Config{})
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "update-agent version "+version+"\n", buf.String())
}

func TestApplyCmd_FlagsDefaultFromConfig(t *testing.T) {
	cfg := baseConfig(t)
	cmd := newApplyCmd(cfg)

	for flag, want := range map[string]string{
		"callback-endpoint":            cfg.CallbackEndpoint,
		"manifest-file":                cfg.ManifestFile,
		"credential-provider-endpoint": cfg.CredentialProviderEndpoint,
		"credential-provider-auth":     cfg.CredentialProviderAuth,
		"dry-run":                      "false",
		"max-concurrency":              "4",
	} {
		f := cmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, want, f.DefValue, flag)
	}
	assert.Equal(t, "c", cmd.Flags().Lookup("callback-endpoint").Shorthand)
	assert.Equal(t, "m", cmd.Flags().Lookup("manifest-file").Shorthand)
	assert.Equal(t, "p", cmd.Flags().Lookup("credential-provider-endpoint").Shorthand)
	assert.Equal(t, "a", cmd.Flags().Lookup("credential-provider-auth").Shorthand)
}

func TestApplyCmd_ArgumentErrorFailsRun(t *testing.T) {
	root := newRootCmd(config.Config{LogLevel: "error", ReleaseDriver: config.DriverSDK})
	root.SetArgs([]string{"apply", "--callback-endpoint", "not-a-url"})

	err := root.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ArgumentErrorMessage)
}

func TestComponentFactory_AllBuilt(t *testing.T) {
	build := NewComponentFactory(baseConfig(t), logger.New("error"))

	c, err := build()

	require.NoError(t, err)
	assert.NotNil(t, c.Reporter)
	assert.NotNil(t, c.Manifest)
	assert.NotNil(t, c.Credentials)
	assert.NotNil(t, c.Secrets)
	assert.NotNil(t, c.Releases)
}

func TestComponentFactory_FreshPerRun(t *testing.T) {
	build := NewComponentFactory(baseConfig(t), logger.New("error"))

	first, err := build()
	require.NoError(t, err)
	second, err := build()
	require.NoError(t, err)

	assert.NotSame(t, first.Reporter, second.Reporter)
}

func TestComponentFactory_PartialOnArgumentError(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*config.Config)
		wantReporter bool
	}{
		{
			name:   "bad callback endpoint",
			mutate: func(c *config.Config) { c.CallbackEndpoint = "" },
		},
		{
			name:         "missing manifest file",
			mutate:       func(c *config.Config) { c.ManifestFile = "" },
			wantReporter: true,
		},
		{
			name:         "bad credential endpoint",
			mutate:       func(c *config.Config) { c.CredentialProviderEndpoint = "ftp://creds" },
			wantReporter: true,
		},
		{
			name:         "missing credential token",
			mutate:       func(c *config.Config) { c.CredentialProviderAuth = "" },
			wantReporter: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tt.mutate(&cfg)

			c, err := NewComponentFactory(cfg, logger.New("error"))()

			require.Error(t, err)
			assert.True(t, domain.IsArgError(err))
			assert.Equal(t, tt.wantReporter, c.Reporter != nil)
			assert.Nil(t, c.Releases)
		})
	}
}

func TestNewReleasePort_UnknownDriver(t *testing.T) {
	_, err := newReleasePort(config.Config{ReleaseDriver: "tiller"}, logger.New("error"))
	assert.Error(t, err)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/failure"
)

func testConfig() *config.Config {
	return &config.Config{
		Stage: "dev",
		Secrets: config.SecretsConfig{
			Backend: "static",
			Values: map[string]string{
				"/dev/jamfpro/address":                          "https://jamf.example.com",
				"/dev/jamfpro/accts/unmanagecomputers/username": "unmanage-api",
				"/dev/jamfpro/accts/unmanagecomputers/password": "secret",
			},
		},
		AWS:     config.AWSConfig{Region: "us-east-1"},
		Queue:   config.QueueConfig{Driver: "log", NotifyQueue: "notify"},
		Topic:   config.TopicConfig{Driver: "log"},
		Webhook: config.WebhookConfig{Timeout: time.Second},
		Jamf:    config.JamfConfig{Timeout: time.Second},
		Unmanage: config.PipelineConfig{
			Search:           "StaleMachines",
			WorkQueue:        "unmanage",
			Account:          "UnmanageComputers",
			WebhookParameter: "Webhooks/MSTeams/TeamName/ChannelName",
		},
		Remanage: config.PipelineConfig{
			Account:          "RemanageComputers",
			WebhookParameter: "JamfPro/Webhooks/WVUAppleAdmins/AWS-Automation",
		},
		Debug: true,
	}
}

func newTestRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	logger, _ := test.NewNullLogger()
	rt, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt
}

func TestNewRuntime(t *testing.T) {
	rt := newTestRuntime(t, testConfig())

	assert.True(t, rt.DryRun)
	assert.Nil(t, rt.NewRelic)
	assert.NotNil(t, rt.Metrics)
	assert.NotNil(t, rt.Notifier())
}

func TestNewRuntimeRejectsUnknownBackends(t *testing.T) {
	logger, _ := test.NewNullLogger()

	cfg := testConfig()
	cfg.Secrets.Backend = "vault"
	_, err := New(context.Background(), cfg, logger)
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	cfg = testConfig()
	cfg.Queue.Driver = "kafka"
	_, err = New(context.Background(), cfg, logger)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestJamfClientResolvesFromSecrets(t *testing.T) {
	rt := newTestRuntime(t, testConfig())

	client, err := rt.JamfClient(context.Background(), "UnmanageComputers")
	require.NoError(t, err)
	assert.Equal(t, "https://jamf.example.com", client.BaseURL())

	again, err := rt.JamfClient(context.Background(), "UnmanageComputers")
	require.NoError(t, err)
	assert.Same(t, client, again)
}

func TestJamfClientConfigOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Jamf.URL = "https://override.example.com"
	cfg.Jamf.Username = "local"
	cfg.Jamf.Password = "local"
	rt := newTestRuntime(t, cfg)

	client, err := rt.JamfClient(context.Background(), "AnyAccount")
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", client.BaseURL())
}

func TestJamfClientMissingCredentials(t *testing.T) {
	rt := newTestRuntime(t, testConfig())

	_, err := rt.JamfClient(context.Background(), "RemanageComputers")
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestSelectorRequiresSearch(t *testing.T) {
	cfg := testConfig()
	cfg.Unmanage.Search = ""
	rt := newTestRuntime(t, cfg)

	_, err := rt.Selector(context.Background(), Unmanage)
	require.ErrorIs(t, err, failure.ErrConfiguration)
	assert.Contains(t, err.Error(), "unmanage.Search")
}

func TestBuildersForConfiguredPipeline(t *testing.T) {
	rt := newTestRuntime(t, testConfig())
	ctx := context.Background()

	selector, err := rt.Selector(ctx, Unmanage)
	require.NoError(t, err)
	assert.NotNil(t, selector)

	worker, err := rt.Transition(ctx, Unmanage)
	require.NoError(t, err)
	assert.NotNil(t, worker)

	_, err = rt.Transition(ctx, "decommission")
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestTransitionRequiresNotifyQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.NotifyQueue = ""
	rt := newTestRuntime(t, cfg)

	_, err := rt.Transition(context.Background(), Unmanage)
	require.ErrorIs(t, err, failure.ErrConfiguration)
	assert.Contains(t, err.Error(), "NotifyQueue")
}

func TestEncryptionReportRequiresConfiguration(t *testing.T) {
	rt := newTestRuntime(t, testConfig())

	_, err := rt.EncryptionReport(context.Background())
	require.ErrorIs(t, err, failure.ErrConfiguration)
	assert.Contains(t, err.Error(), "report.Search")
}

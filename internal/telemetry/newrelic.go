package telemetry

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/config"
)

const connectTimeout = 5 * time.Second

// InitNewRelic initializes the New Relic application. It returns a nil
// application when monitoring is disabled; every agent call accepts nil.
func InitNewRelic(cfg config.NewRelicConfig, log logrus.FieldLogger) (*newrelic.Application, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, err
	}

	// Wait for the application to connect
	if err := app.WaitForConnection(connectTimeout); err != nil {
		log.WithError(err).Warn("New Relic did not connect in time, continuing")
	}

	return app, nil
}

// StartTransaction begins a background transaction named after a function
// and attaches it to ctx so outbound HTTP calls are recorded as segments.
func StartTransaction(ctx context.Context, app *newrelic.Application, name string) (context.Context, *newrelic.Transaction) {
	txn := app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn
}

// Shutdown flushes pending data before the process exits.
func Shutdown(app *newrelic.Application) {
	if app == nil {
		return
	}
	app.Shutdown(connectTimeout)
}

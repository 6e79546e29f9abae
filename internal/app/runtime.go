package app

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/messaging"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/secrets"
	"example.com/backstage/services/jamfops/internal/service"
	"example.com/backstage/services/jamfops/internal/telemetry"
	"example.com/backstage/services/jamfops/internal/validation"
	"example.com/backstage/services/jamfops/internal/webhook"
)

// Pipeline names.
const (
	Unmanage = "unmanage"
	Remanage = "remanage"
)

const clientType = "jamfops"

// Runtime holds the long-lived clients shared by every function of one
// process. Jamf clients are created per API account on first use.
type Runtime struct {
	Config   *config.Config
	AWS      aws.Config
	Secrets  secrets.Store
	Queue    messaging.Client
	Topic    messaging.Topic
	Webhook  *webhook.Client
	NewRelic *newrelic.Application
	Metrics  *metrics.Collector
	DryRun   bool

	log  logrus.FieldLogger
	mu   sync.Mutex
	jamf map[string]*jamf.Client
}

// New builds the runtime from cfg.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Runtime, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "load aws config", err)
	}

	store, err := newSecretStore(cfg.Secrets, awsCfg, log)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	queue, err := messaging.NewClient(cfg.Queue, awsCfg, clientType, log)
	if err != nil {
		return nil, err
	}

	topic, err := messaging.NewTopic(cfg.Topic.Driver, awsCfg, log)
	if err != nil {
		_ = queue.Close(ctx)
		return nil, err
	}

	nrApp, err := telemetry.InitNewRelic(cfg.NewRelic, log)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize New Relic")
	}

	return &Runtime{
		Config:   cfg,
		AWS:      awsCfg,
		Secrets:  secrets.NewCached(store),
		Queue:    messaging.Instrument(queue, collector),
		Topic:    topic,
		Webhook:  webhook.NewClient(cfg.Webhook.Timeout),
		NewRelic: nrApp,
		Metrics:  collector,
		DryRun:   cfg.Debug,
		log:      log,
		jamf:     make(map[string]*jamf.Client),
	}, nil
}

func newSecretStore(cfg config.SecretsConfig, awsCfg aws.Config, log logrus.FieldLogger) (secrets.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "ssm", "":
		return secrets.NewSSMStore(awsCfg, log), nil
	case "static":
		return secrets.NewStaticStore(cfg.Values), nil
	default:
		return nil, failure.Configuration("unknown secrets backend %q", cfg.Backend)
	}
}

// Close logs the final counters, releases the queue client and flushes
// New Relic.
func (r *Runtime) Close(ctx context.Context) {
	r.log.WithField("counters", r.Metrics.GetMetrics()["counters"]).Info("Final metrics")
	if err := r.Queue.Close(ctx); err != nil {
		r.log.WithError(err).Error("Error closing queue client")
	}
	telemetry.Shutdown(r.NewRelic)
}

// JamfClient returns the client for an API account, resolving the server
// address and credentials on first use. Values set in the configuration
// take precedence over the secrets store.
func (r *Runtime) JamfClient(ctx context.Context, account string) (*jamf.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.jamf[account]; ok {
		return client, nil
	}

	stage := r.Config.Stage
	address, err := r.lookup(ctx, r.Config.Jamf.URL, secrets.AddressPath(stage))
	if err != nil {
		return nil, err
	}
	username, err := r.lookup(ctx, r.Config.Jamf.Username, secrets.AccountPath(stage, account, "Username"))
	if err != nil {
		return nil, err
	}
	password, err := r.lookup(ctx, r.Config.Jamf.Password, secrets.AccountPath(stage, account, "Password"))
	if err != nil {
		return nil, err
	}

	client := jamf.NewClient(jamf.Credentials{
		URL:      address,
		Username: username,
		Password: password,
	}, r.Config.Jamf.Timeout, r.log.WithField("account", account))
	r.jamf[account] = client
	return client, nil
}

func (r *Runtime) lookup(ctx context.Context, override, path string) (string, error) {
	if override != "" {
		return override, nil
	}
	return r.Secrets.Get(ctx, path)
}

func (r *Runtime) pipeline(name string) (config.PipelineConfig, service.Variant, error) {
	switch name {
	case Unmanage:
		return r.Config.Unmanage, service.UnmanageVariant(), nil
	case Remanage:
		pc := r.Config.Remanage
		return pc, service.RemanageVariant(pc.ManagementUsername, pc.ManagementPassword), nil
	default:
		return config.PipelineConfig{}, service.Variant{}, failure.Configuration("unknown pipeline %q", name)
	}
}

func missing(scope string, s interface{}, fields ...string) error {
	if names := validation.MissingFields(scope, s, fields...); len(names) > 0 {
		return failure.Configuration("missing %s", validation.Describe(names))
	}
	return nil
}

// Selector builds the selector of the named pipeline.
func (r *Runtime) Selector(ctx context.Context, name string) (*service.Selector, error) {
	pc, variant, err := r.pipeline(name)
	if err != nil {
		return nil, err
	}
	if err := missing(name, pc, "Search", "WorkQueue", "Account"); err != nil {
		return nil, err
	}

	client, err := r.JamfClient(ctx, pc.Account)
	if err != nil {
		return nil, err
	}

	return service.NewSelector(service.SelectorConfig{
		Search:  pc.Search,
		Queue:   pc.WorkQueue,
		Purpose: strings.ToLower(variant.Past),
	}, client, r.Queue, r.Metrics, r.log.WithField("pipeline", name)), nil
}

// Transition builds the state-transition worker of the named pipeline.
func (r *Runtime) Transition(ctx context.Context, name string) (*service.Transition, error) {
	pc, variant, err := r.pipeline(name)
	if err != nil {
		return nil, err
	}
	if err := missing(name, pc, "Account", "WebhookParameter"); err != nil {
		return nil, err
	}
	if r.Config.Queue.NotifyQueue == "" {
		return nil, failure.Configuration("missing queue.NotifyQueue")
	}

	client, err := r.JamfClient(ctx, pc.Account)
	if err != nil {
		return nil, err
	}

	return service.NewTransition(service.TransitionConfig{
		Variant:       variant,
		NotifyQueue:   r.Config.Queue.NotifyQueue,
		WebhookSecret: secrets.ParameterPath(r.Config.Stage, pc.WebhookParameter),
		DryRun:        r.DryRun,
	}, client, r.Queue, r.Secrets, r.Metrics, r.log.WithField("pipeline", name)), nil
}

// Notifier builds the chat relay.
func (r *Runtime) Notifier() *service.Notifier {
	return service.NewNotifier(r.Webhook, r.Metrics, r.log)
}

// EncryptionReport builds the per-site encryption report.
func (r *Runtime) EncryptionReport(ctx context.Context) (*service.EncryptionReport, error) {
	rc := r.Config.Report
	if err := missing("report", rc); err != nil {
		return nil, err
	}

	client, err := r.JamfClient(ctx, rc.Account)
	if err != nil {
		return nil, err
	}

	return service.NewEncryptionReport(service.ReportConfig{
		Search:  rc.Search,
		Topic:   rc.TopicARN,
		Subject: rc.Subject,
	}, client, r.Topic, r.Metrics, r.log.WithField("report", "encryption")), nil
}

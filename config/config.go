package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Environment string
	Stage       string
	Debug       bool
	Logging     LoggingConfig
	Jamf        JamfConfig
	Secrets     SecretsConfig
	AWS         AWSConfig
	Queue       QueueConfig
	Topic       TopicConfig
	Webhook     WebhookConfig
	Unmanage    PipelineConfig
	Remanage    PipelineConfig
	Report      ReportConfig
	Schedule    ScheduleConfig
	Server      ServerConfig
	NewRelic    NewRelicConfig
}

// LoggingConfig holds the logger configuration
type LoggingConfig struct {
	Level  string
	Format string // json, text
}

// JamfConfig holds the device-management API configuration. URL and the
// credentials are normally resolved from the secrets store; the values here
// override the store for local runs.
type JamfConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// SecretsConfig selects the secrets backend
type SecretsConfig struct {
	Backend string // ssm, static
	Values  map[string]string
}

// AWSConfig holds the AWS SDK configuration
type AWSConfig struct {
	Region string
}

// QueueConfig holds the work and notification queue configuration
type QueueConfig struct {
	Driver      string // sqs, servicebus, redis, log
	NotifyQueue string
	BatchSize   int
	ServiceBus  ServiceBusConfig
	Redis       RedisConfig
}

// ServiceBusConfig holds the Azure Service Bus configuration
type ServiceBusConfig struct {
	ConnectionString string
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TopicConfig selects the notification topic driver
type TopicConfig struct {
	Driver string // sns, log
}

// WebhookConfig holds the chat webhook client configuration
type WebhookConfig struct {
	Timeout time.Duration
}

// PipelineConfig holds the settings of one lifecycle pipeline (unmanage or remanage)
type PipelineConfig struct {
	Search             string `validate:"required"`
	WorkQueue          string `validate:"required"`
	Account            string `validate:"required"`
	WebhookParameter   string `validate:"required"`
	ManagementUsername string
	ManagementPassword string
}

// ReportConfig holds the encryption report settings
type ReportConfig struct {
	Search   string `validate:"required"`
	TopicARN string `validate:"required"`
	Account  string `validate:"required"`
	Subject  string
}

// ScheduleConfig holds the intervals used by the schedule command
type ScheduleConfig struct {
	Unmanage        time.Duration
	Remanage        time.Duration
	Report          time.Duration
	ConsumeInterval time.Duration
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Address string
	Mode    string // debug, release, test
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// legacyEnv maps configuration keys to the environment variable names used by
// the earlier per-function deployments. They are consulted after the prefixed name.
var legacyEnv = map[string][]string{
	"stage":                {"STAGE"},
	"debug":                {"DEBUG"},
	"unmanage.search":      {"GROUP_NAME"},
	"remanage.search":      {"GROUP_NAME"},
	"report.search":        {"GROUP_NAME"},
	"unmanage.work_queue":  {"SQS_QUEUE_URL"},
	"remanage.work_queue":  {"SQS_QUEUE_URL"},
	"queue.notify_queue":   {"SendToTeams_URL", "SendToMicrosoftTeams_URL"},
	"report.topic_arn":     {"SNS_TOPIC_ARN"},
	"newrelic.license_key": {"NEW_RELIC_LICENSE_KEY"},
	"aws.region":           {"AWS_REGION"},
	"logging.level":        {"LOG_LEVEL"},
}

// Load reads configuration from an optional file, the environment and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/jamfops")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// JAMFOPS_QUEUE_DRIVER overrides queue.driver
	v.SetEnvPrefix("JAMFOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		envs := append([]string{"JAMFOPS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "failed to bind environment for %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	return fromViper(v), nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("stage", "dev")
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("jamf.timeout", "30s")

	v.SetDefault("secrets.backend", "ssm")

	// No default connection strings; the log driver is used until one is configured
	v.SetDefault("queue.driver", "log")
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.redis.host", "localhost")
	v.SetDefault("queue.redis.port", 6379)
	v.SetDefault("queue.redis.db", 0)

	v.SetDefault("topic.driver", "log")
	v.SetDefault("webhook.timeout", "30s")

	v.SetDefault("unmanage.account", "UnmanageComputers")
	v.SetDefault("unmanage.webhook_parameter", "Webhooks/MSTeams/TeamName/ChannelName")
	v.SetDefault("remanage.account", "RemanageComputers")
	v.SetDefault("remanage.webhook_parameter", "JamfPro/Webhooks/WVUAppleAdmins/AWS-Automation")
	v.SetDefault("remanage.management_username", "automated-remanagenment")
	v.SetDefault("remanage.management_password", "Remanaged-Machine")

	v.SetDefault("report.account", "EncryptionReport")
	v.SetDefault("report.subject", "Jamf Pro Encryption Report")

	v.SetDefault("schedule.unmanage", "24h")
	v.SetDefault("schedule.remanage", "1h")
	v.SetDefault("schedule.report", "168h")
	v.SetDefault("schedule.consume_interval", "1m")

	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("newrelic.app_name", "jamfops")
	v.SetDefault("newrelic.enabled", false)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Environment: v.GetString("environment"),
		Stage:       strings.ToLower(strings.TrimSpace(v.GetString("stage"))),
		Debug:       v.GetBool("debug"),
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Jamf: JamfConfig{
			URL:      strings.TrimRight(v.GetString("jamf.url"), "/"),
			Username: v.GetString("jamf.username"),
			Password: v.GetString("jamf.password"),
			Timeout:  v.GetDuration("jamf.timeout"),
		},
		Secrets: SecretsConfig{
			Backend: v.GetString("secrets.backend"),
			Values:  v.GetStringMapString("secrets.values"),
		},
		AWS: AWSConfig{
			Region: v.GetString("aws.region"),
		},
		Queue: QueueConfig{
			Driver:      v.GetString("queue.driver"),
			NotifyQueue: v.GetString("queue.notify_queue"),
			BatchSize:   v.GetInt("queue.batch_size"),
			ServiceBus: ServiceBusConfig{
				ConnectionString: v.GetString("queue.servicebus.connection_string"),
			},
			Redis: RedisConfig{
				Host:     v.GetString("queue.redis.host"),
				Port:     v.GetInt("queue.redis.port"),
				Password: v.GetString("queue.redis.password"),
				DB:       v.GetInt("queue.redis.db"),
			},
		},
		Topic: TopicConfig{
			Driver: v.GetString("topic.driver"),
		},
		Webhook: WebhookConfig{
			Timeout: v.GetDuration("webhook.timeout"),
		},
		Unmanage: pipelineFromViper(v, "unmanage"),
		Remanage: pipelineFromViper(v, "remanage"),
		Report: ReportConfig{
			Search:   v.GetString("report.search"),
			TopicARN: v.GetString("report.topic_arn"),
			Account:  v.GetString("report.account"),
			Subject:  v.GetString("report.subject"),
		},
		Schedule: ScheduleConfig{
			Unmanage:        v.GetDuration("schedule.unmanage"),
			Remanage:        v.GetDuration("schedule.remanage"),
			Report:          v.GetDuration("schedule.report"),
			ConsumeInterval: v.GetDuration("schedule.consume_interval"),
		},
		Server: ServerConfig{
			Address: v.GetString("server.address"),
			Mode:    v.GetString("server.mode"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("newrelic.app_name"),
			LicenseKey: v.GetString("newrelic.license_key"),
			Enabled:    v.GetBool("newrelic.enabled"),
		},
	}
}

func pipelineFromViper(v *viper.Viper, name string) PipelineConfig {
	key := func(k string) string { return fmt.Sprintf("%s.%s", name, k) }
	return PipelineConfig{
		Search:             v.GetString(key("search")),
		WorkQueue:          v.GetString(key("work_queue")),
		Account:            v.GetString(key("account")),
		WebhookParameter:   v.GetString(key("webhook_parameter")),
		ManagementUsername: v.GetString(key("management_username")),
		ManagementPassword: v.GetString(key("management_password")),
	}
}

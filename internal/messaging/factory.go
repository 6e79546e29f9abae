package messaging

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/failure"
)

// NewClient creates the queue client selected by cfg.Driver. A servicebus
// driver without a connection string falls back to the log client.
func NewClient(cfg config.QueueConfig, awsCfg aws.Config, clientType string, log logrus.FieldLogger) (Client, error) {
	log = log.WithField("driver", cfg.Driver)

	switch cfg.Driver {
	case DriverSQS:
		return NewSQSClient(awsCfg, log), nil
	case DriverServiceBus:
		if cfg.ServiceBus.ConnectionString == "" {
			log.Warn("No Service Bus connection string configured, using log client")
			return NewLogClient(clientType, log), nil
		}
		return NewServiceBusClient(cfg.ServiceBus.ConnectionString, clientType, log)
	case DriverRedis:
		return NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, log)
	case DriverLog, "":
		return NewLogClient(clientType, log), nil
	default:
		return nil, failure.Configuration("unknown queue driver %q", cfg.Driver)
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

// Topic driver names.
const (
	TopicDriverSNS = "sns"
	TopicDriverLog = "log"
)

// Topic fans a single message out to its subscribers.
type Topic interface {
	Publish(ctx context.Context, target, subject, message string) error
}

// SNSAPI is the subset of the SNS client used by SNSTopic.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSTopic publishes to an SNS topic ARN with a per-protocol message
// structure so email subscribers receive the plain text.
type SNSTopic struct {
	api SNSAPI
	log logrus.FieldLogger
}

// NewSNSTopic creates a topic publisher from an AWS configuration
func NewSNSTopic(cfg aws.Config, log logrus.FieldLogger) *SNSTopic {
	return NewSNSTopicWithAPI(sns.NewFromConfig(cfg), log)
}

// NewSNSTopicWithAPI creates a topic publisher over any SNSAPI implementation
func NewSNSTopicWithAPI(api SNSAPI, log logrus.FieldLogger) *SNSTopic {
	return &SNSTopic{api: api, log: log}
}

// StructuredMessage renders the json message structure: "default" carries the
// JSON-encoded text and "email" the text itself.
func StructuredMessage(message string) (string, error) {
	encoded, err := json.Marshal(message)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(map[string]string{
		"default": string(encoded),
		"email":   message,
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Publish sends message to the topic ARN in target
func (t *SNSTopic) Publish(ctx context.Context, target, subject, message string) error {
	body, err := StructuredMessage(message)
	if err != nil {
		return failure.Wrap(failure.ErrParse, "encode topic message", err)
	}

	out, err := t.api.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(target),
		Subject:          aws.String(subject),
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("publish to %s", target), err)
	}

	t.log.WithFields(logrus.Fields{
		"topic":      target,
		"message_id": aws.ToString(out.MessageId),
	}).Info("Published topic message")
	return nil
}

// LogTopic is a mock topic that only logs.
type LogTopic struct {
	log logrus.FieldLogger
}

// NewLogTopic creates a topic that only logs
func NewLogTopic(log logrus.FieldLogger) *LogTopic {
	return &LogTopic{log: log}
}

// Publish logs the message
func (t *LogTopic) Publish(ctx context.Context, target, subject, message string) error {
	t.log.WithFields(logrus.Fields{
		"topic":   target,
		"subject": subject,
	}).Infof("[MOCK] Topic message published:\n%s", message)
	return nil
}

// NewTopic creates the topic selected by driver
func NewTopic(driver string, awsCfg aws.Config, log logrus.FieldLogger) (Topic, error) {
	switch driver {
	case TopicDriverSNS:
		return NewSNSTopic(awsCfg, log), nil
	case TopicDriverLog, "":
		return NewLogTopic(log), nil
	default:
		return nil, failure.Configuration("unknown topic driver %q", driver)
	}
}

package messaging

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

const (
	sqsMaxBatch    = 10
	sqsWaitSeconds = 5
)

// SQSAPI is the subset of the SQS client used by SQSClient.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSClient implements Client on Amazon SQS. Queues are addressed by URL.
type SQSClient struct {
	api SQSAPI
	log logrus.FieldLogger
}

// NewSQSClient creates a client from an AWS configuration
func NewSQSClient(cfg aws.Config, log logrus.FieldLogger) *SQSClient {
	return NewSQSClientWithAPI(sqs.NewFromConfig(cfg), log)
}

// NewSQSClientWithAPI creates a client over any SQSAPI implementation
func NewSQSClientWithAPI(api SQSAPI, log logrus.FieldLogger) *SQSClient {
	return &SQSClient{api: api, log: log}
}

// SendMessage sends body to the queue at the given URL
func (c *SQSClient) SendMessage(ctx context.Context, queue string, body string) error {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queue),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("send message to %s", queue), err)
	}

	c.log.WithFields(logrus.Fields{
		"queue":      queue,
		"message_id": aws.ToString(out.MessageId),
	}).Debug("Sent SQS message")
	return nil
}

// ReceiveMessages receives up to max messages (at most 10) from the queue
func (c *SQSClient) ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error) {
	if max <= 0 || max > sqsMaxBatch {
		max = sqsMaxBatch
	}

	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queue),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     sqsWaitSeconds,
	})
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Sprintf("receive messages from %s", queue), err)
	}

	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		deliveries = append(deliveries, &sqsDelivery{
			api:           c.api,
			queue:         queue,
			id:            aws.ToString(m.MessageId),
			body:          aws.ToString(m.Body),
			receiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return deliveries, nil
}

// Close is a no-op; the SDK client holds no connections that need closing
func (c *SQSClient) Close(ctx context.Context) error {
	return nil
}

type sqsDelivery struct {
	api           SQSAPI
	queue         string
	id            string
	body          string
	receiptHandle string
}

func (d *sqsDelivery) ID() string   { return d.id }
func (d *sqsDelivery) Body() string { return d.body }

// Complete deletes the message from the queue
func (d *sqsDelivery) Complete(ctx context.Context) error {
	_, err := d.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(d.queue),
		ReceiptHandle: aws.String(d.receiptHandle),
	})
	if err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("delete message %s", d.id), err)
	}
	return nil
}

// Abandon makes the message visible again immediately
func (d *sqsDelivery) Abandon(ctx context.Context) error {
	_, err := d.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(d.queue),
		ReceiptHandle:     aws.String(d.receiptHandle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("release message %s", d.id), err)
	}
	return nil
}

package messaging

import (
	"context"
	"time"

	"example.com/backstage/services/jamfops/internal/metrics"
)

// Driver names accepted by NewClient.
const (
	DriverSQS        = "sqs"
	DriverServiceBus = "servicebus"
	DriverRedis      = "redis"
	DriverLog        = "log"
)

// Publisher sends string bodies to a named queue. For SQS the queue is the
// queue URL, for the other drivers it is the queue name.
type Publisher interface {
	SendMessage(ctx context.Context, queue string, body string) error
	Close(ctx context.Context) error
}

// Delivery is one received message awaiting settlement.
type Delivery interface {
	ID() string
	Body() string
	Complete(ctx context.Context) error
	Abandon(ctx context.Context) error
}

// Consumer receives batches of messages from a named queue.
type Consumer interface {
	ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error)
	Close(ctx context.Context) error
}

// Client is a queue driver that can both publish and consume.
type Client interface {
	Publisher
	Consumer
}

// instrumentedClient records message bus metrics around a driver.
type instrumentedClient struct {
	Client
	collector *metrics.Collector
}

// Instrument wraps client so every operation is recorded on collector.
func Instrument(client Client, collector *metrics.Collector) Client {
	if collector == nil {
		return client
	}
	return &instrumentedClient{Client: client, collector: collector}
}

func (c *instrumentedClient) SendMessage(ctx context.Context, queue string, body string) error {
	start := time.Now()
	err := c.Client.SendMessage(ctx, queue, body)
	c.collector.RecordMessageBusOperation(metrics.MessageBusOperationSend, err == nil, time.Since(start))
	return err
}

func (c *instrumentedClient) ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error) {
	start := time.Now()
	deliveries, err := c.Client.ReceiveMessages(ctx, queue, max)
	c.collector.RecordMessageBusOperation(metrics.MessageBusOperationReceive, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	c.collector.SetPendingMessages(len(deliveries))

	wrapped := make([]Delivery, len(deliveries))
	for i, d := range deliveries {
		wrapped[i] = &instrumentedDelivery{Delivery: d, collector: c.collector}
	}
	return wrapped, nil
}

type instrumentedDelivery struct {
	Delivery
	collector *metrics.Collector
}

func (d *instrumentedDelivery) Complete(ctx context.Context) error {
	start := time.Now()
	err := d.Delivery.Complete(ctx)
	d.collector.RecordMessageBusOperation(metrics.MessageBusOperationComplete, err == nil, time.Since(start))
	return err
}

func (d *instrumentedDelivery) Abandon(ctx context.Context) error {
	start := time.Now()
	err := d.Delivery.Abandon(ctx)
	d.collector.RecordMessageBusOperation(metrics.MessageBusOperationAbandon, err == nil, time.Since(start))
	return err
}

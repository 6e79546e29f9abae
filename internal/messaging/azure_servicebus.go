package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

const serviceBusReceiveTimeout = 30 * time.Second

// ServiceBusClient implements Client using Azure Service Bus queues
type ServiceBusClient struct {
	client     *azservicebus.Client
	clientType string
	log        logrus.FieldLogger

	mu        sync.Mutex
	senders   map[string]*azservicebus.Sender
	receivers map[string]*azservicebus.Receiver
}

// NewServiceBusClient creates a new Azure Service Bus client
func NewServiceBusClient(connectionString, clientType string, log logrus.FieldLogger) (*ServiceBusClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "create service bus client", err)
	}

	return &ServiceBusClient{
		client:     client,
		clientType: clientType,
		log:        log,
		senders:    make(map[string]*azservicebus.Sender),
		receivers:  make(map[string]*azservicebus.Receiver),
	}, nil
}

func (s *ServiceBusClient) sender(queue string) (*azservicebus.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sender, ok := s.senders[queue]; ok {
		return sender, nil
	}
	sender, err := s.client.NewSender(queue, nil)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Sprintf("create sender for queue %s", queue), err)
	}
	s.senders[queue] = sender
	return sender, nil
}

// receiver returns the peek-lock receiver of queue, opening it on first use.
// Settlement goes through the receiver that received the message, so one
// link per queue stays open until Close.
func (s *ServiceBusClient) receiver(queue string) (*azservicebus.Receiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receiver, ok := s.receivers[queue]; ok {
		return receiver, nil
	}
	receiver, err := s.client.NewReceiverForQueue(queue, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Sprintf("create receiver for queue %s", queue), err)
	}
	s.receivers[queue] = receiver
	return receiver, nil
}

// SendMessage sends a message to the Service Bus queue
func (s *ServiceBusClient) SendMessage(ctx context.Context, queue string, body string) error {
	sender, err := s.sender(queue)
	if err != nil {
		return err
	}

	msg := &azservicebus.Message{
		Body: []byte(body),
		ApplicationProperties: map[string]interface{}{
			"source": s.clientType,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("send message to queue %s", queue), err)
	}
	return nil
}

// ReceiveMessages receives up to max messages from a queue in peek-lock mode
func (s *ServiceBusClient) ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error) {
	receiver, err := s.receiver(queue)
	if err != nil {
		return nil, err
	}

	receiveCtx, cancel := context.WithTimeout(ctx, serviceBusReceiveTimeout)
	defer cancel()

	messages, err := receiver.ReceiveMessages(receiveCtx, max, nil)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Sprintf("receive messages from queue %s", queue), err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	deliveries := make([]Delivery, len(messages))
	for i, message := range messages {
		deliveries[i] = &serviceBusDelivery{message: message, receiver: receiver}
	}
	return deliveries, nil
}

// Close closes the cached senders and receivers, then the client
func (s *ServiceBusClient) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for queue, sender := range s.senders {
		if err := sender.Close(ctx); err != nil {
			s.log.WithError(err).WithField("queue", queue).Warn("Failed to close Service Bus sender")
		}
	}
	for queue, receiver := range s.receivers {
		if err := receiver.Close(ctx); err != nil {
			s.log.WithError(err).WithField("queue", queue).Warn("Failed to close Service Bus receiver")
		}
	}
	s.senders = make(map[string]*azservicebus.Sender)
	s.receivers = make(map[string]*azservicebus.Receiver)

	return s.client.Close(ctx)
}

type serviceBusDelivery struct {
	message  *azservicebus.ReceivedMessage
	receiver *azservicebus.Receiver
}

func (d *serviceBusDelivery) ID() string {
	return d.message.MessageID
}

func (d *serviceBusDelivery) Body() string {
	return string(d.message.Body)
}

// Complete removes the message from the queue
func (d *serviceBusDelivery) Complete(ctx context.Context) error {
	if err := d.receiver.CompleteMessage(ctx, d.message, nil); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("complete message %s", d.message.MessageID), err)
	}
	return nil
}

// Abandon returns the message to the queue
func (d *serviceBusDelivery) Abandon(ctx context.Context) error {
	if err := d.receiver.AbandonMessage(ctx, d.message, nil); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("abandon message %s", d.message.MessageID), err)
	}
	return nil
}

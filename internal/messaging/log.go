package messaging

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogClient is a mock implementation for local development. Sends are
// logged and nothing is ever received.
type LogClient struct {
	clientType string
	log        logrus.FieldLogger
}

// NewLogClient creates a client that only logs
func NewLogClient(clientType string, log logrus.FieldLogger) *LogClient {
	return &LogClient{clientType: clientType, log: log}
}

// SendMessage logs the message
func (m *LogClient) SendMessage(ctx context.Context, queue string, body string) error {
	m.log.WithFields(logrus.Fields{
		"source": m.clientType,
		"queue":  queue,
		"body":   body,
	}).Info("[MOCK] Message sent")
	return nil
}

// ReceiveMessages always returns an empty batch
func (m *LogClient) ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error) {
	m.log.WithField("queue", queue).Info("[MOCK] No messages to receive")
	return nil, nil
}

// Close implementation for mock client
func (m *LogClient) Close(ctx context.Context) error {
	return nil
}

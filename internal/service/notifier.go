package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
	"example.com/backstage/services/jamfops/internal/validation"
)

// RelayResult summarizes one notifier batch.
type RelayResult struct {
	Received int
	Skipped  int
	Posted   int
	Failed   int
}

// Notifier relays notification messages to the chat webhook each one names.
type Notifier struct {
	poster  WebhookPoster
	metrics *metrics.Collector
	log     logrus.FieldLogger
}

// NewNotifier creates a new notifier
func NewNotifier(poster WebhookPoster, collector *metrics.Collector, log logrus.FieldLogger) *Notifier {
	return &Notifier{poster: poster, metrics: collector, log: log}
}

// HandleBatch posts each record's message to its webhook, exactly once and
// unchanged. Invalid records are skipped; failed posts are not retried.
func (n *Notifier) HandleBatch(ctx context.Context, records []models.QueueRecord) (RelayResult, error) {
	result := RelayResult{Received: len(records)}
	n.metrics.IncrementCounter(metrics.CounterRecordsReceived, int64(len(records)))

	for _, record := range records {
		log := n.log.WithField("message_id", record.MessageID)

		msg, err := decodeNotification(record.Body)
		if err != nil {
			log.WithError(err).WithField("kind", failure.KindOf(err)).Error("Skipping invalid notification message")
			log.WithField("body", record.Body).Debug("Invalid notification body")
			n.metrics.IncrementCounter(metrics.CounterRecordsSkipped, 1)
			result.Skipped++
			continue
		}

		log = log.WithField("webhook_host", hostOf(msg.Webhook.URL))
		if err := n.poster.Post(ctx, msg.Webhook.URL, msg.Message); err != nil {
			log.WithError(err).WithField("kind", failure.KindOf(err)).Error("Failed to post notification")
			n.metrics.IncrementCounter(metrics.CounterWebhookFailures, 1)
			result.Failed++
			continue
		}

		log.Info("Posted notification")
		n.metrics.IncrementCounter(metrics.CounterWebhookPosts, 1)
		result.Posted++
	}

	return result, nil
}

func decodeNotification(body string) (models.NotificationMessage, error) {
	var msg models.NotificationMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return msg, failure.Wrap(failure.ErrParse, "decode notification", err)
	}
	if err := validation.ValidateStruct(msg.Webhook); err != nil {
		return msg, failure.Wrap(failure.ErrParse, "webhook url", err)
	}

	// The card schema belongs to the chat service; any object is relayed.
	msg.Message = bytes.TrimSpace(msg.Message)
	if len(msg.Message) == 0 || msg.Message[0] != '{' {
		return msg, failure.Wrap(failure.ErrParse, "decode notification", fmt.Errorf("message must be a JSON object"))
	}
	return msg, nil
}

// hostOf keeps webhook secrets out of the logs.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

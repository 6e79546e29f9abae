package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
)

// unknownName stands in for a device name that could not be looked up after
// a successful transition.
const unknownName = "Unknown"

// Variant describes one direction of the device lifecycle.
type Variant struct {
	Name    string // unmanage, remanage
	Title   string
	Past    string // Unmanaged, Remanaged
	Present string // Unmanaging, Remanaging
	Payload jamf.RemoteManagement
}

// UnmanageVariant turns remote management off.
func UnmanageVariant() Variant {
	return Variant{
		Name:    "unmanage",
		Title:   "Automated Unmanagement",
		Past:    "Unmanaged",
		Present: "Unmanaging",
		Payload: jamf.Unmanaged(),
	}
}

// RemanageVariant turns remote management back on with the given management
// account.
func RemanageVariant(username, password string) Variant {
	return Variant{
		Name:    "remanage",
		Title:   "Automated Remanagement",
		Past:    "Remanaged",
		Present: "Remanaging",
		Payload: jamf.Managed(username, password),
	}
}

// NotificationText renders the chat text for a transitioned device.
func (v Variant) NotificationText(name string, id models.DeviceID, url string) string {
	return fmt.Sprintf("**%s the following machine:**\n\rMachine Name: %s\n\rComputer ID: %s\n\rURL: %s",
		v.Past, name, id, url)
}

// TransitionConfig configures a state-transition worker.
type TransitionConfig struct {
	Variant     Variant
	NotifyQueue string
	// WebhookSecret is the secret path holding the chat webhook URL.
	WebhookSecret string
	DryRun        bool
}

// BatchResult summarizes one worker batch.
type BatchResult struct {
	Received     int
	Skipped      int
	Transitioned []models.DeviceID
	Notified     []models.DeviceID
	Failed       []models.DeviceID
}

// Transition applies a lifecycle transition to each device in a batch and
// announces every successful one on the notification queue.
type Transition struct {
	cfg       TransitionConfig
	devices   DeviceManager
	publisher QueuePublisher
	secrets   SecretResolver
	metrics   *metrics.Collector
	log       logrus.FieldLogger
}

// NewTransition creates a new state-transition worker
func NewTransition(cfg TransitionConfig, devices DeviceManager, publisher QueuePublisher, secrets SecretResolver, collector *metrics.Collector, log logrus.FieldLogger) *Transition {
	return &Transition{
		cfg:       cfg,
		devices:   devices,
		publisher: publisher,
		secrets:   secrets,
		metrics:   collector,
		log:       log.WithField("variant", cfg.Variant.Name),
	}
}

// HandleBatch processes every record independently. A failure on one record
// never stops the rest of the batch. The error is only set when the worker is
// not configured, in which case no record is touched.
func (t *Transition) HandleBatch(ctx context.Context, records []models.QueueRecord) (BatchResult, error) {
	result := BatchResult{Received: len(records)}
	if t.cfg.NotifyQueue == "" {
		return result, failure.Configuration("notification queue is not configured")
	}
	if t.cfg.WebhookSecret == "" {
		return result, failure.Configuration("webhook secret is not configured")
	}

	t.metrics.IncrementCounter(metrics.CounterRecordsReceived, int64(len(records)))

	for _, record := range records {
		id := models.DeviceID(strings.TrimSpace(record.Body))
		log := t.log.WithFields(logrus.Fields{"device_id": id, "message_id": record.MessageID})

		if id == "" {
			log.Warn("Skipping record with an empty body")
			t.metrics.IncrementCounter(metrics.CounterRecordsSkipped, 1)
			result.Skipped++
			continue
		}

		log.Infof("%s computer ID: %s", t.cfg.Variant.Present, id)
		if t.cfg.DryRun {
			log.Debugf("Dry run is enabled, computer will not be %s", strings.ToLower(t.cfg.Variant.Past))
			t.metrics.IncrementCounter(metrics.CounterRecordsSkipped, 1)
			result.Skipped++
			continue
		}

		if err := t.devices.UpdateRemoteManagement(ctx, id, t.cfg.Variant.Payload); err != nil {
			log.WithError(err).WithField("kind", failure.KindOf(err)).Errorf("Failed to %s computer", t.cfg.Variant.Name)
			t.metrics.IncrementCounter(metrics.CounterTransitionFailures, 1)
			result.Failed = append(result.Failed, id)
			continue
		}
		t.metrics.IncrementCounter(metrics.CounterTransitions, 1)
		result.Transitioned = append(result.Transitioned, id)

		if err := t.notify(ctx, id, log); err != nil {
			log.WithError(err).WithField("kind", failure.KindOf(err)).Error("Failed to publish notification")
			t.metrics.IncrementCounter(metrics.CounterPublishFailures, 1)
			continue
		}
		t.metrics.IncrementCounter(metrics.CounterNotificationsPublished, 1)
		result.Notified = append(result.Notified, id)
	}

	return result, nil
}

func (t *Transition) notify(ctx context.Context, id models.DeviceID, log logrus.FieldLogger) error {
	webhookURL, err := t.secrets.Get(ctx, t.cfg.WebhookSecret)
	if err != nil {
		return err
	}

	name, err := t.devices.ComputerName(ctx, id)
	if err != nil {
		log.WithError(err).WithField("kind", failure.KindOf(err)).Warn("Failed to look up computer name")
		name = unknownName
	}

	msg, err := models.NewNotificationMessage(webhookURL, models.ChatMessage{
		Title: t.cfg.Variant.Title,
		Text:  t.cfg.Variant.NotificationText(name, id, t.devices.ComputerURL(id)),
	})
	if err != nil {
		return failure.Wrap(failure.ErrParse, "encode notification", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return failure.Wrap(failure.ErrParse, "encode notification", err)
	}
	log.WithField("message", string(body)).Debug("Message being sent")

	return t.publisher.SendMessage(ctx, t.cfg.NotifyQueue, string(body))
}

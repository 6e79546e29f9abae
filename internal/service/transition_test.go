package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
)

const (
	notifyQueueURL = "https://sqs.us-east-1.amazonaws.com/123/teams"
	webhookSecret  = "/dev/Webhooks/MSTeams/TeamName/ChannelName"
	webhookURL     = "https://example.webhook.office.com/webhookb2/abc"
)

func newTestTransition(variant Variant, dryRun bool, devices DeviceManager, publisher QueuePublisher) (*Transition, *metrics.Collector) {
	logger, _ := test.NewNullLogger()
	collector := metrics.NewCollector()
	cfg := TransitionConfig{
		Variant:       variant,
		NotifyQueue:   notifyQueueURL,
		WebhookSecret: webhookSecret,
		DryRun:        dryRun,
	}
	return NewTransition(cfg, devices, publisher, staticSecrets{webhookSecret: webhookURL}, collector, logger), collector
}

func records(bodies ...string) []models.QueueRecord {
	out := make([]models.QueueRecord, len(bodies))
	for i, body := range bodies {
		out[i] = models.QueueRecord{MessageID: "msg-" + body, Body: body}
	}
	return out
}

func decodePublished(t *testing.T, body string) (models.NotificationMessage, models.ChatMessage) {
	t.Helper()
	var msg models.NotificationMessage
	require.NoError(t, json.Unmarshal([]byte(body), &msg))
	var chat models.ChatMessage
	require.NoError(t, json.Unmarshal(msg.Message, &chat))
	return msg, chat
}

func TestUnmanageSingleRecord(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("101"), jamf.Unmanaged()).Return(nil)
	devices.On("ComputerName", ctx, models.DeviceID("101")).Return("MACBOOK-101", nil)

	var published string
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { published = args.String(2) }).
		Return(nil).Once()

	worker, collector := newTestTransition(UnmanageVariant(), false, devices, publisher)
	result, err := worker.HandleBatch(ctx, records("101"))
	require.NoError(t, err)

	assert.Equal(t, []models.DeviceID{"101"}, result.Transitioned)
	assert.Equal(t, []models.DeviceID{"101"}, result.Notified)
	publisher.AssertNumberOfCalls(t, "SendMessage", 1)

	msg, chat := decodePublished(t, published)
	assert.Equal(t, webhookURL, msg.Webhook.URL)
	assert.Equal(t, "Automated Unmanagement", chat.Title)
	assert.Contains(t, chat.Text, "MACBOOK-101")
	assert.Contains(t, chat.Text, "101")
	assert.Equal(t,
		"**Unmanaged the following machine:**\n\rMachine Name: MACBOOK-101\n\rComputer ID: 101\n\rURL: https://jamf.example.com/computers.html?id=101",
		chat.Text)

	assert.Equal(t, int64(1), collector.Counter(metrics.CounterTransitions))
	assert.Equal(t, int64(1), collector.Counter(metrics.CounterNotificationsPublished))
	devices.AssertExpectations(t)
}

func TestRemanageSendsManagementAccount(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	payload := jamf.Managed("automated-remanagenment", "Remanaged-Machine")
	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("7"), payload).Return(nil)
	devices.On("ComputerName", ctx, models.DeviceID("7")).Return("IMAC-7", nil)

	var published string
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { published = args.String(2) }).
		Return(nil)

	worker, _ := newTestTransition(RemanageVariant("automated-remanagenment", "Remanaged-Machine"), false, devices, publisher)
	_, err := worker.HandleBatch(ctx, records("7"))
	require.NoError(t, err)

	_, chat := decodePublished(t, published)
	assert.Equal(t, "Automated Remanagement", chat.Title)
	assert.Contains(t, chat.Text, "**Remanaged the following machine:**")
	devices.AssertExpectations(t)
}

func TestDryRunProducesNoNotifications(t *testing.T) {
	for _, size := range []int{0, 1, 5} {
		devices := new(MockDeviceManager)
		publisher := new(MockQueuePublisher)

		bodies := make([]string, size)
		for i := range bodies {
			bodies[i] = string(rune('1' + i))
		}

		worker, _ := newTestTransition(UnmanageVariant(), true, devices, publisher)
		result, err := worker.HandleBatch(context.Background(), records(bodies...))
		require.NoError(t, err)

		assert.Equal(t, size, result.Skipped)
		assert.Empty(t, result.Notified)
		devices.AssertNotCalled(t, "UpdateRemoteManagement", mock.Anything, mock.Anything, mock.Anything)
		devices.AssertNotCalled(t, "ComputerName", mock.Anything, mock.Anything)
		publisher.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestFailedTransitionIsIsolated(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("101"), jamf.Unmanaged()).Return(nil)
	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("102"), jamf.Unmanaged()).
		Return(failure.Wrap(failure.ErrTransport, "update computer 102", errors.New("connection reset")))
	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("103"), jamf.Unmanaged()).Return(nil)
	devices.On("ComputerName", ctx, mock.Anything).Return("MAC", nil)
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).Return(nil)

	worker, collector := newTestTransition(UnmanageVariant(), false, devices, publisher)
	result, err := worker.HandleBatch(ctx, records("101", "102", "103"))
	require.NoError(t, err)

	assert.Equal(t, []models.DeviceID{"102"}, result.Failed)
	assert.Equal(t, []models.DeviceID{"101", "103"}, result.Transitioned)
	assert.Equal(t, []models.DeviceID{"101", "103"}, result.Notified)
	devices.AssertNotCalled(t, "ComputerName", ctx, models.DeviceID("102"))
	publisher.AssertNumberOfCalls(t, "SendMessage", 2)
	assert.Equal(t, int64(1), collector.Counter(metrics.CounterTransitionFailures))
}

func TestNameLookupFailureStillNotifies(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	devices.On("UpdateRemoteManagement", ctx, models.DeviceID("101"), jamf.Unmanaged()).Return(nil)
	devices.On("ComputerName", ctx, models.DeviceID("101")).Return("", failure.Wrap(failure.ErrRejected, "get computer 101", nil))

	var published string
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { published = args.String(2) }).
		Return(nil)

	worker, _ := newTestTransition(UnmanageVariant(), false, devices, publisher)
	result, err := worker.HandleBatch(ctx, records("101"))
	require.NoError(t, err)

	assert.Equal(t, []models.DeviceID{"101"}, result.Notified)
	_, chat := decodePublished(t, published)
	assert.Contains(t, chat.Text, "Machine Name: Unknown")
}

func TestPublishFailureDoesNotStopBatch(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	devices.On("UpdateRemoteManagement", ctx, mock.Anything, jamf.Unmanaged()).Return(nil)
	devices.On("ComputerName", ctx, mock.Anything).Return("MAC", nil)
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).Return(errors.New("queue down")).Once()
	publisher.On("SendMessage", ctx, notifyQueueURL, mock.AnythingOfType("string")).Return(nil)

	worker, _ := newTestTransition(UnmanageVariant(), false, devices, publisher)
	result, err := worker.HandleBatch(ctx, records("1", "2"))
	require.NoError(t, err)

	assert.Equal(t, []models.DeviceID{"1", "2"}, result.Transitioned)
	assert.Equal(t, []models.DeviceID{"2"}, result.Notified)
}

func TestEmptyBodyIsSkipped(t *testing.T) {
	devices := new(MockDeviceManager)
	publisher := new(MockQueuePublisher)
	logger, hook := test.NewNullLogger()

	worker := NewTransition(TransitionConfig{
		Variant:       UnmanageVariant(),
		NotifyQueue:   notifyQueueURL,
		WebhookSecret: webhookSecret,
	}, devices, publisher, staticSecrets{}, nil, logger)

	result, err := worker.HandleBatch(context.Background(), records("  "))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	devices.AssertNotCalled(t, "UpdateRemoteManagement", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionRequiresNotifyQueue(t *testing.T) {
	devices := new(MockDeviceManager)
	logger, _ := test.NewNullLogger()

	worker := NewTransition(TransitionConfig{Variant: UnmanageVariant(), WebhookSecret: webhookSecret},
		devices, new(MockQueuePublisher), staticSecrets{}, nil, logger)

	result, err := worker.HandleBatch(context.Background(), records("101"))
	assert.ErrorIs(t, err, failure.ErrConfiguration)
	assert.Equal(t, 1, result.Received)
	devices.AssertNotCalled(t, "UpdateRemoteManagement", mock.Anything, mock.Anything, mock.Anything)
}

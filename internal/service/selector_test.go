package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
)

const workQueueURL = "https://sqs.us-east-1.amazonaws.com/123/unmanage"

func newTestSelector(searcher DeviceSearcher, publisher QueuePublisher) *Selector {
	logger, _ := test.NewNullLogger()
	return NewSelector(SelectorConfig{Search: "StaleMachines", Queue: workQueueURL, Purpose: "unmanaged"},
		searcher, publisher, metrics.NewCollector(), logger)
}

func TestSelectorPublishesEveryID(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	searcher.On("AdvancedSearchComputerIDs", ctx, "StaleMachines").
		Return([]models.DeviceID{"101", "102", "103"}, nil)
	publisher.On("SendMessage", ctx, workQueueURL, mock.AnythingOfType("string")).Return(nil)

	result, err := newTestSelector(searcher, publisher).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Requested)
	assert.ElementsMatch(t, []models.DeviceID{"101", "102", "103"}, result.Published)
	assert.Empty(t, result.Failed)

	publisher.AssertNumberOfCalls(t, "SendMessage", 3)
	for _, body := range []string{"101", "102", "103"} {
		publisher.AssertCalled(t, "SendMessage", ctx, workQueueURL, body)
	}
}

func TestSelectorAttemptsEveryPublishDespiteFailures(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	ids := []models.DeviceID{"1", "2", "3", "4", "5"}
	searcher.On("AdvancedSearchComputerIDs", ctx, "StaleMachines").Return(ids, nil)
	publisher.On("SendMessage", ctx, workQueueURL, "2").Return(errors.New("throttled"))
	publisher.On("SendMessage", ctx, workQueueURL, "4").Return(errors.New("throttled"))
	publisher.On("SendMessage", ctx, workQueueURL, mock.AnythingOfType("string")).Return(nil)

	result, err := newTestSelector(searcher, publisher).Run(ctx)
	require.NoError(t, err)

	publisher.AssertNumberOfCalls(t, "SendMessage", len(ids))
	assert.Equal(t, len(ids), result.Requested)
	assert.Equal(t, []models.DeviceID{"2", "4"}, result.Failed)
	assert.Equal(t, []models.DeviceID{"1", "3", "5"}, result.Published)
}

func TestSelectorEmptySearch(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	searcher.On("AdvancedSearchComputerIDs", ctx, "StaleMachines").Return([]models.DeviceID{}, nil)

	result, err := newTestSelector(searcher, publisher).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Requested)
	publisher.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSelectorSearchFailurePublishesNothing(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	publisher := new(MockQueuePublisher)
	ctx := context.Background()

	searcher.On("AdvancedSearchComputerIDs", ctx, "StaleMachines").
		Return(nil, failure.Wrap(failure.ErrParse, "get advanced search", errors.New("bad json")))

	_, err := newTestSelector(searcher, publisher).Run(ctx)
	assert.ErrorIs(t, err, failure.ErrParse)
	publisher.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSelectorRequiresSearchName(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	publisher := new(MockQueuePublisher)
	logger, _ := test.NewNullLogger()

	selector := NewSelector(SelectorConfig{Queue: workQueueURL}, searcher, publisher, nil, logger)
	_, err := selector.Run(context.Background())

	assert.ErrorIs(t, err, failure.ErrConfiguration)
	searcher.AssertNotCalled(t, "AdvancedSearchComputerIDs", mock.Anything, mock.Anything)
}

func TestSelectorRequiresQueue(t *testing.T) {
	searcher := new(MockDeviceSearcher)
	logger, _ := test.NewNullLogger()

	selector := NewSelector(SelectorConfig{Search: "StaleMachines"}, searcher, new(MockQueuePublisher), nil, logger)
	_, err := selector.Run(context.Background())

	assert.ErrorIs(t, err, failure.ErrConfiguration)
	searcher.AssertNotCalled(t, "AdvancedSearchComputerIDs", mock.Anything, mock.Anything)
}

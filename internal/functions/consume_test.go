package functions

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/messaging"
	"example.com/backstage/services/jamfops/internal/models"
)

type fakeDelivery struct {
	id, body  string
	completed bool
	abandoned bool
}

func (d *fakeDelivery) ID() string   { return d.id }
func (d *fakeDelivery) Body() string { return d.body }
func (d *fakeDelivery) Complete(context.Context) error {
	d.completed = true
	return nil
}
func (d *fakeDelivery) Abandon(context.Context) error {
	d.abandoned = true
	return nil
}

type fakeConsumer struct {
	queue      string
	max        int
	deliveries []*fakeDelivery
	err        error
}

func (c *fakeConsumer) ReceiveMessages(_ context.Context, queue string, max int) ([]messaging.Delivery, error) {
	c.queue, c.max = queue, max
	if c.err != nil {
		return nil, c.err
	}
	out := make([]messaging.Delivery, len(c.deliveries))
	for i, d := range c.deliveries {
		out[i] = d
	}
	return out, nil
}

func (c *fakeConsumer) Close(context.Context) error { return nil }

func worker(received *[]models.QueueRecord, err error) Function {
	return Function{
		Name:        Unmanage,
		SourceQueue: "unmanage-work",
		Build: func(context.Context) (Handler, error) {
			return func(_ context.Context, records []models.QueueRecord) (logrus.Fields, error) {
				*received = records
				return nil, err
			}, nil
		},
	}
}

func TestConsumeOnceCompletesEveryDelivery(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var received []models.QueueRecord
	registry := NewRegistry([]Function{worker(&received, errors.New("one record failed"))}, nil, nil, logger)

	consumer := &fakeConsumer{deliveries: []*fakeDelivery{{id: "a", body: "101"}, {id: "b", body: "102"}}}
	n, err := registry.ConsumeOnce(context.Background(), Unmanage, consumer, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, "unmanage-work", consumer.queue)
	assert.Equal(t, 10, consumer.max)
	assert.Equal(t, []models.QueueRecord{{MessageID: "a", Body: "101"}, {MessageID: "b", Body: "102"}}, received)
	for _, d := range consumer.deliveries {
		assert.True(t, d.completed, d.id)
		assert.False(t, d.abandoned, d.id)
	}
}

func TestConsumeOnceAbandonsBatchWhenCancelled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processed := 0
	registry := NewRegistry([]Function{{
		Name:        Unmanage,
		SourceQueue: "unmanage-work",
		Build: func(context.Context) (Handler, error) {
			return func(ctx context.Context, records []models.QueueRecord) (logrus.Fields, error) {
				cancel()
				for range records {
					if ctx.Err() != nil {
						continue
					}
					processed++
				}
				return nil, ctx.Err()
			}, nil
		},
	}}, nil, nil, logger)

	consumer := &fakeConsumer{deliveries: []*fakeDelivery{{id: "a", body: "101"}, {id: "b", body: "102"}}}
	n, err := registry.ConsumeOnce(ctx, Unmanage, consumer, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Zero(t, processed)
	for _, d := range consumer.deliveries {
		assert.True(t, d.abandoned, d.id)
		assert.False(t, d.completed, d.id)
	}
}

func TestConsumeOnceEmptyQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var received []models.QueueRecord
	registry := NewRegistry([]Function{worker(&received, nil)}, nil, nil, logger)

	n, err := registry.ConsumeOnce(context.Background(), Unmanage, &fakeConsumer{}, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, received)
}

func TestConsumeOnceReceiveFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var received []models.QueueRecord
	registry := NewRegistry([]Function{worker(&received, nil)}, nil, nil, logger)

	cause := failure.Wrap(failure.ErrTransport, "receive", errors.New("timeout"))
	_, err := registry.ConsumeOnce(context.Background(), Unmanage, &fakeConsumer{err: cause}, 10)
	assert.ErrorIs(t, err, failure.ErrTransport)
}

func TestConsumeOnceRequiresSourceQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	registry := NewRegistry([]Function{failing(SelectUnmanage, nil)}, nil, nil, logger)

	_, err := registry.ConsumeOnce(context.Background(), SelectUnmanage, &fakeConsumer{}, 10)
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = registry.ConsumeOnce(context.Background(), "decommission", &fakeConsumer{}, 10)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

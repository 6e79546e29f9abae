package functions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/messaging"
	"example.com/backstage/services/jamfops/internal/models"
)

// ConsumeOnce receives one batch from the function's source queue, runs the
// function over it and completes every delivery. Deliveries are completed
// whatever the per-record outcome, the same way a queue trigger deletes a
// batch once the handler returns. If ctx is cancelled while the batch runs,
// every delivery is abandoned instead and ctx.Err() is returned. It returns
// the number of records handled.
func (r *Registry) ConsumeOnce(ctx context.Context, name string, consumer messaging.Consumer, batchSize int) (int, error) {
	fn, ok := r.functions[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownFunction, "%q", name)
	}
	if fn.SourceQueue == "" {
		return 0, failure.Configuration("function %s has no source queue", name)
	}

	deliveries, err := consumer.ReceiveMessages(ctx, fn.SourceQueue, batchSize)
	if err != nil {
		return 0, err
	}
	if len(deliveries) == 0 {
		return 0, nil
	}

	records := make([]models.QueueRecord, len(deliveries))
	for i, d := range deliveries {
		records[i] = models.QueueRecord{MessageID: d.ID(), Body: d.Body()}
	}

	if err := r.Handle(ctx, name, records); err != nil {
		return 0, err
	}

	settleCtx := context.WithoutCancel(ctx)
	if err := ctx.Err(); err != nil {
		r.log.WithFields(logrus.Fields{
			"function": name,
			"count":    len(deliveries),
		}).Warn("Cancelled mid-batch, returning messages to the queue")
		r.settle(settleCtx, name, deliveries, messaging.Delivery.Abandon, "abandon")
		return 0, err
	}

	r.settle(settleCtx, name, deliveries, messaging.Delivery.Complete, "complete")
	return len(records), nil
}

func (r *Registry) settle(ctx context.Context, name string, deliveries []messaging.Delivery, op func(messaging.Delivery, context.Context) error, verb string) {
	for _, d := range deliveries {
		if err := op(d, ctx); err != nil {
			r.log.WithFields(logrus.Fields{
				"function":   name,
				"message_id": d.ID(),
			}).WithError(err).Errorf("Failed to %s message", verb)
		}
	}
}

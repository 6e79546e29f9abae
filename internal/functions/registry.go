package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
	"example.com/backstage/services/jamfops/internal/telemetry"
)

// ErrUnknownFunction is returned for a name that is not registered.
var ErrUnknownFunction = errors.New("unknown function")

// Handler runs one invocation. records is empty for scheduled functions.
// The returned fields summarize the run for the completion log line.
type Handler func(ctx context.Context, records []models.QueueRecord) (logrus.Fields, error)

// Builder creates the handler for one invocation.
type Builder func(ctx context.Context) (Handler, error)

// Function is one deployable entry point.
type Function struct {
	Name string
	// SourceQueue is the queue the function consumes; empty for scheduled functions.
	SourceQueue string
	Build       Builder
}

// Registry dispatches invocations to named functions.
type Registry struct {
	functions map[string]Function
	nrApp     *newrelic.Application
	metrics   *metrics.Collector
	log       logrus.FieldLogger
}

// NewRegistry creates a registry over fns.
func NewRegistry(fns []Function, nrApp *newrelic.Application, collector *metrics.Collector, log logrus.FieldLogger) *Registry {
	byName := make(map[string]Function, len(fns))
	for _, fn := range fns {
		byName[fn.Name] = fn
	}
	return &Registry{
		functions: byName,
		nrApp:     nrApp,
		metrics:   collector,
		log:       log,
	}
}

// Names lists the registered functions in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// DecodeEvent extracts queue records from a queue-trigger event. An empty
// payload or an event without records yields no records.
func DecodeEvent(payload json.RawMessage) ([]models.QueueRecord, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}

	var event events.SQSEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, failure.Wrap(failure.ErrParse, "decode event", err)
	}

	records := make([]models.QueueRecord, 0, len(event.Records))
	for _, msg := range event.Records {
		records = append(records, models.QueueRecord{MessageID: msg.MessageId, Body: msg.Body})
	}
	return records, nil
}

// Invoke decodes payload and runs the named function. Only an unknown name
// is returned as an error. Every other failure is logged and swallowed so
// the trigger does not redeliver a partially processed batch.
func (r *Registry) Invoke(ctx context.Context, name string, payload json.RawMessage) error {
	if _, ok := r.functions[name]; !ok {
		return errors.Wrapf(ErrUnknownFunction, "%q", name)
	}

	records, err := DecodeEvent(payload)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"function": name,
			"kind":     failure.KindOf(err),
		}).WithError(err).Error("Discarding undecodable event")
		r.metrics.RecordInvocation(name, false, 0)
		return nil
	}

	return r.Handle(ctx, name, records)
}

// Handle runs the named function over already decoded records.
func (r *Registry) Handle(ctx context.Context, name string, records []models.QueueRecord) error {
	fn, ok := r.functions[name]
	if !ok {
		return errors.Wrapf(ErrUnknownFunction, "%q", name)
	}

	ctx, txn := telemetry.StartTransaction(ctx, r.nrApp, name)
	defer txn.End()

	log := r.log.WithFields(logrus.Fields{
		"function":      name,
		"invocation_id": uuid.NewString(),
		"records":       len(records),
	})
	log.Info("Invocation started")

	start := time.Now()
	summary, err := r.run(ctx, fn, records)
	r.metrics.RecordInvocation(name, err == nil, time.Since(start))

	if err != nil {
		txn.NoticeError(err)
		r.metrics.RecordError(failure.KindOf(err))
		log.WithFields(logrus.Fields{
			"kind":     failure.KindOf(err),
			"severity": failure.Severity(err),
		}).WithError(err).Error("Invocation failed")
		return nil
	}

	log.WithFields(summary).WithField("duration", time.Since(start)).Info("Invocation completed")
	return nil
}

func (r *Registry) run(ctx context.Context, fn Function, records []models.QueueRecord) (summary logrus.Fields, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{
				"function": fn.Name,
				"stack":    string(debug.Stack()),
			}).Error("Recovered from panic")
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	handler, err := fn.Build(ctx)
	if err != nil {
		return nil, err
	}
	return handler(ctx, records)
}

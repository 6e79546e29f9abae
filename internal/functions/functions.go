package functions

import (
	"context"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/app"
	"example.com/backstage/services/jamfops/internal/models"
)

// Function names.
const (
	SelectUnmanage   = "select-unmanage"
	SelectRemanage   = "select-remanage"
	Unmanage         = "unmanage"
	Remanage         = "remanage"
	Notify           = "notify"
	EncryptionReport = "encryption-report"
)

// Names lists every deployable function.
var Names = []string{SelectUnmanage, SelectRemanage, Unmanage, Remanage, Notify, EncryptionReport}

// FromRuntime wires every function to the clients of rt.
func FromRuntime(rt *app.Runtime) []Function {
	cfg := rt.Config
	return []Function{
		{Name: SelectUnmanage, Build: selector(rt, app.Unmanage)},
		{Name: SelectRemanage, Build: selector(rt, app.Remanage)},
		{Name: Unmanage, SourceQueue: cfg.Unmanage.WorkQueue, Build: transition(rt, app.Unmanage)},
		{Name: Remanage, SourceQueue: cfg.Remanage.WorkQueue, Build: transition(rt, app.Remanage)},
		{Name: Notify, SourceQueue: cfg.Queue.NotifyQueue, Build: notifier(rt)},
		{Name: EncryptionReport, Build: encryptionReport(rt)},
	}
}

// Unavailable registers every function with a builder that fails with err.
// It is used when the runtime itself could not be created.
func Unavailable(err error) []Function {
	fns := make([]Function, 0, len(Names))
	for _, name := range Names {
		fns = append(fns, Function{
			Name:  name,
			Build: func(context.Context) (Handler, error) { return nil, err },
		})
	}
	return fns
}

func selector(rt *app.Runtime, pipeline string) Builder {
	return func(ctx context.Context) (Handler, error) {
		s, err := rt.Selector(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ []models.QueueRecord) (logrus.Fields, error) {
			result, err := s.Run(ctx)
			return logrus.Fields{
				"search":    result.Search,
				"requested": result.Requested,
				"published": len(result.Published),
				"failed":    len(result.Failed),
			}, err
		}, nil
	}
}

func transition(rt *app.Runtime, pipeline string) Builder {
	return func(ctx context.Context) (Handler, error) {
		t, err := rt.Transition(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, records []models.QueueRecord) (logrus.Fields, error) {
			result, err := t.HandleBatch(ctx, records)
			return logrus.Fields{
				"received":     result.Received,
				"skipped":      result.Skipped,
				"transitioned": len(result.Transitioned),
				"notified":     len(result.Notified),
				"failed":       len(result.Failed),
			}, err
		}, nil
	}
}

func notifier(rt *app.Runtime) Builder {
	return func(context.Context) (Handler, error) {
		n := rt.Notifier()
		return func(ctx context.Context, records []models.QueueRecord) (logrus.Fields, error) {
			result, err := n.HandleBatch(ctx, records)
			return logrus.Fields{
				"received": result.Received,
				"skipped":  result.Skipped,
				"posted":   result.Posted,
				"failed":   result.Failed,
			}, err
		}, nil
	}
}

func encryptionReport(rt *app.Runtime) Builder {
	return func(ctx context.Context) (Handler, error) {
		report, err := rt.EncryptionReport(ctx)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ []models.QueueRecord) (logrus.Fields, error) {
			result, err := report.Run(ctx)
			return logrus.Fields{
				"sites":     len(result.Rows),
				"published": result.Published,
			}, err
		}, nil
	}
}

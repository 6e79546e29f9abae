package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
)

// SelectorConfig names the saved search to resolve and the queue to fill.
type SelectorConfig struct {
	Search string
	Queue  string
	// Purpose completes the per-device log line, e.g. "unmanaged".
	Purpose string
}

// SelectorResult summarizes one selector run.
type SelectorResult struct {
	Search    string
	Requested int
	Published []models.DeviceID
	Failed    []models.DeviceID
}

// Selector publishes one work-queue message per device matched by a
// saved search.
type Selector struct {
	cfg       SelectorConfig
	searcher  DeviceSearcher
	publisher QueuePublisher
	metrics   *metrics.Collector
	log       logrus.FieldLogger
}

// NewSelector creates a new selector
func NewSelector(cfg SelectorConfig, searcher DeviceSearcher, publisher QueuePublisher, collector *metrics.Collector, log logrus.FieldLogger) *Selector {
	return &Selector{
		cfg:       cfg,
		searcher:  searcher,
		publisher: publisher,
		metrics:   collector,
		log:       log,
	}
}

// Run resolves the search and publishes every identifier. Publish failures
// are logged and counted; only configuration and search failures abort the
// run, and nothing is published in that case.
func (s *Selector) Run(ctx context.Context) (SelectorResult, error) {
	result := SelectorResult{Search: s.cfg.Search}

	if s.cfg.Search == "" {
		return result, failure.Configuration("search name is not configured")
	}
	if s.cfg.Queue == "" {
		return result, failure.Configuration("work queue is not configured")
	}

	log := s.log.WithFields(logrus.Fields{"search": s.cfg.Search, "queue": s.cfg.Queue})

	ids, err := s.searcher.AdvancedSearchComputerIDs(ctx, s.cfg.Search)
	if err != nil {
		return result, err
	}
	s.metrics.IncrementCounter(metrics.CounterDevicesSelected, int64(len(ids)))

	if len(ids) == 0 {
		log.Info("No computer IDs returned, the search appears to be empty")
		return result, nil
	}

	result.Requested = len(ids)
	for _, id := range ids {
		deviceLog := log.WithField("device_id", id)
		deviceLog.Infof("Sending computer ID '%s' to the queue to be %s", id, s.cfg.Purpose)

		if err := s.publisher.SendMessage(ctx, s.cfg.Queue, string(id)); err != nil {
			deviceLog.WithError(err).WithField("kind", failure.KindOf(err)).Error("Failed to publish computer ID")
			s.metrics.IncrementCounter(metrics.CounterPublishFailures, 1)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Published = append(result.Published, id)
	}

	log.WithFields(logrus.Fields{
		"requested": result.Requested,
		"published": len(result.Published),
		"failed":    len(result.Failed),
	}).Info("Selector run finished")
	return result, nil
}

package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/metrics"
	"example.com/backstage/services/jamfops/internal/models"
)

// ReportConfig configures the encryption report.
type ReportConfig struct {
	Search  string
	Topic   string
	Subject string
}

// ReportResult is the outcome of one report run.
type ReportResult struct {
	Rows      []models.SiteCount
	Table     string
	Published bool
}

// EncryptionReport counts encrypted devices per site through a saved search
// and publishes the table to a topic.
type EncryptionReport struct {
	cfg     ReportConfig
	scoper  SearchScoper
	topic   TopicPublisher
	metrics *metrics.Collector
	log     logrus.FieldLogger
}

// NewEncryptionReport creates a new encryption report
func NewEncryptionReport(cfg ReportConfig, scoper SearchScoper, topic TopicPublisher, collector *metrics.Collector, log logrus.FieldLogger) *EncryptionReport {
	return &EncryptionReport{
		cfg:     cfg,
		scoper:  scoper,
		topic:   topic,
		metrics: collector,
		log:     log,
	}
}

// Run builds and publishes the report. Any failure to count a site aborts
// the report; the search is restored to full scope either way.
func (r *EncryptionReport) Run(ctx context.Context) (result ReportResult, err error) {
	if r.cfg.Search == "" {
		return result, failure.Configuration("search name is not configured")
	}
	if r.cfg.Topic == "" {
		return result, failure.Configuration("report topic is not configured")
	}

	log := r.log.WithField("search", r.cfg.Search)

	scope := acquireSiteScope(r.scoper, r.cfg.Search, log)
	defer func() {
		if rerr := scope.Release(ctx); rerr != nil {
			log.WithError(rerr).WithField("kind", failure.KindOf(rerr)).Error("Failed to restore search to full scope")
			if err == nil {
				err = rerr
			}
		}
	}()

	sites, err := r.scoper.ListSites(ctx)
	if err != nil {
		return result, err
	}
	sort.SliceStable(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })

	rows := make([]models.SiteCount, 0, len(sites))
	for _, site := range sites {
		count, err := scope.Count(ctx, site)
		if err != nil {
			log.WithField("site", site.Name).WithError(err).Error("Failed to count encrypted computers")
			return result, err
		}
		rows = append(rows, models.SiteCount{Site: site, Count: count})
	}

	result.Rows = rows
	result.Table = RenderReport(rows)
	log.Infof("Encryption report:\n%s", result.Table)

	if err := r.topic.Publish(ctx, r.cfg.Topic, r.cfg.Subject, result.Table); err != nil {
		return result, err
	}
	result.Published = true
	r.metrics.IncrementCounter(metrics.CounterReportsPublished, 1)
	return result, nil
}

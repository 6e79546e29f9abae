package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/jamfops/api"
	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/functions"
	"example.com/backstage/services/jamfops/internal/messaging"
)

var scheduleWithServer bool

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run every function on a schedule",
	Long: `Runs the selectors and the encryption report on their configured
intervals and polls the worker and notifier queues, standing in for the
scheduled and queue triggers of a serverless deployment.

It will gracefully shut down on receiving SIGINT or SIGTERM signals.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleWithServer, "serve", false, "also start the HTTP server")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, registry, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}
		if err := registerJobs(ctx, scheduler, cfg, registry, rt.Queue); err != nil {
			return err
		}

		log.WithField("jobs", len(scheduler.Jobs())).Info("Starting scheduler")
		scheduler.Start()

		<-ctx.Done()

		log.Info("Stopping scheduler...")
		return scheduler.Shutdown()
	})

	if scheduleWithServer {
		server := api.NewServer(cfg, log, rt.NewRelic, registry, rt.Metrics)

		g.Go(func() error {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Scheduler error")
		return err
	}

	log.Info("Scheduler shutting down gracefully")
	return nil
}

// registerJobs adds one job per scheduled function and one polling job per
// queue-triggered function. Jobs never overlap with themselves.
func registerJobs(ctx context.Context, scheduler gocron.Scheduler, cfg *config.Config, registry *functions.Registry, consumer messaging.Consumer) error {
	scheduled := []struct {
		name     string
		interval time.Duration
	}{
		{functions.SelectUnmanage, cfg.Schedule.Unmanage},
		{functions.SelectRemanage, cfg.Schedule.Remanage},
		{functions.EncryptionReport, cfg.Schedule.Report},
	}

	for _, job := range scheduled {
		if job.interval <= 0 {
			log.WithField("function", job.name).Info("Schedule disabled")
			continue
		}
		name := job.name
		_, err := scheduler.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(func() {
				if err := registry.Invoke(ctx, name, nil); err != nil {
					log.WithError(err).WithField("function", name).Error("Scheduled invocation failed")
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"function": name, "interval": job.interval}).Info("Scheduled function")
	}

	interval := cfg.Schedule.ConsumeInterval
	if interval <= 0 {
		interval = time.Minute
	}

	for _, name := range []string{functions.Unmanage, functions.Remanage, functions.Notify} {
		fn, ok := registry.Lookup(name)
		if !ok || fn.SourceQueue == "" {
			log.WithField("function", name).Warn("No source queue configured, not polling")
			continue
		}
		_, err := scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				drain(ctx, registry, consumer, name, cfg.Queue.BatchSize)
			}),
			gocron.WithName("consume-"+name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"function": name, "queue": fn.SourceQueue}).Info("Polling queue")
	}

	return nil
}

// drain consumes batches until the queue is empty or a receive fails.
func drain(ctx context.Context, registry *functions.Registry, consumer messaging.Consumer, name string, batchSize int) {
	for ctx.Err() == nil {
		n, err := registry.ConsumeOnce(ctx, name, consumer, batchSize)
		if err != nil {
			log.WithError(err).WithField("function", name).Error("Failed to consume batch")
			return
		}
		if n == 0 {
			return
		}
	}
}

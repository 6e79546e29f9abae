package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/functions"
	"example.com/backstage/services/jamfops/internal/messaging"
)

var consumeOnce bool

// consumeCmd represents the consume command
var consumeCmd = &cobra.Command{
	Use:   "consume <function>",
	Short: "Run a queue-triggered function against its source queue",
	Long: `Polls the source queue of a worker or the notifier and runs the function
over each received batch. Every delivery of a batch is completed once the
function returns.

It will gracefully shut down on receiving SIGINT or SIGTERM signals.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runConsume(args[0])
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)

	consumeCmd.Flags().BoolVar(&consumeOnce, "once", false, "receive a single batch and exit")
}

func runConsume(name string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, registry, err := bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close(context.Background())

	if err := consumeLoop(ctx, registry, rt.Queue, name, cfg.Queue.BatchSize, cfg.Schedule.ConsumeInterval); err != nil {
		log.Fatalf("Consumer stopped: %v", err)
	}
	log.Info("Consumer shutdown complete")
}

// consumeLoop drains the source queue of name until ctx is done. It waits
// for interval whenever the queue comes back empty or fails.
func consumeLoop(ctx context.Context, registry *functions.Registry, consumer messaging.Consumer, name string, batchSize int, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	log.WithFields(logrus.Fields{
		"function":   name,
		"batch_size": batchSize,
	}).Info("Starting consumer")

	for {
		n, err := registry.ConsumeOnce(ctx, name, consumer, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, functions.ErrUnknownFunction) || errors.Is(err, failure.ErrConfiguration) {
				return err
			}
			log.WithError(err).WithField("function", name).Error("Failed to consume batch")
		}
		if consumeOnce {
			return nil
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var eventFile string

// invokeCmd represents the invoke command
var invokeCmd = &cobra.Command{
	Use:   "invoke <function>",
	Short: "Run one function once",
	Long: `Runs a single invocation of a function and exits. Queue-triggered
functions read their records from an SQS-shaped event given with --event.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runInvoke(args[0])
	},
}

func init() {
	rootCmd.AddCommand(invokeCmd)

	invokeCmd.Flags().StringVar(&eventFile, "event", "", "path to a JSON event file")
}

func runInvoke(name string) {
	cfg := loadConfig()
	ctx := context.Background()

	var payload []byte
	if eventFile != "" {
		data, err := os.ReadFile(eventFile)
		if err != nil {
			log.Fatalf("Failed to read event file: %v", err)
		}
		payload = data
	}

	rt, registry, err := bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close(ctx)

	if err := registry.Invoke(ctx, name, payload); err != nil {
		log.Fatalf("Invocation failed: %v", err)
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/functions"
)

var lambdaFunction string

// lambdaCmd represents the lambda command
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run one function under the AWS Lambda runtime",
	Long: `Runs a single function as an AWS Lambda handler. The function is chosen
with --function or the JAMFOPS_FUNCTION environment variable.

If the runtime cannot be built the handler still starts and reports the
configuration failure on every invocation.`,
	Run: func(cmd *cobra.Command, args []string) {
		runLambda()
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)

	lambdaCmd.Flags().StringVar(&lambdaFunction, "function", os.Getenv("JAMFOPS_FUNCTION"), "function to run")
}

func runLambda() {
	cfg := loadConfig()
	ctx := context.Background()

	if !isFunction(lambdaFunction) {
		log.Fatalf("Unknown function %q", lambdaFunction)
	}

	rt, registry, err := bootstrap(ctx, cfg)
	if err != nil {
		log.WithField("severity", failure.Severity(err)).WithError(err).Error("Failed to initialize runtime")
		registry = functions.NewRegistry(functions.Unavailable(err), nil, nil, log)
	} else {
		defer rt.Close(ctx)
	}

	log.WithField("function", lambdaFunction).Info("Starting Lambda handler")
	lambda.Start(func(ctx context.Context, payload json.RawMessage) error {
		return registry.Invoke(ctx, lambdaFunction, payload)
	})
}

func isFunction(name string) bool {
	for _, n := range functions.Names {
		if n == name {
			return true
		}
	}
	return false
}

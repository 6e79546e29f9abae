package cmd

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/backstage/services/jamfops/internal/functions"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// BuildInfo contains information about the build
var BuildInfo struct {
	GitCommit string
	BuildTime string
	GoVersion string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jamfops build and the functions it ships",
	Run: func(cmd *cobra.Command, args []string) {
		writeVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	if BuildInfo.BuildTime == "" {
		BuildInfo.BuildTime = time.Now().Format(time.RFC3339)
	}
	if BuildInfo.GoVersion == "" {
		BuildInfo.GoVersion = runtime.Version()
	}
}

func writeVersion(w io.Writer) {
	commit := BuildInfo.GitCommit
	if commit == "" {
		commit = "unknown"
	}

	fmt.Fprintf(w, "jamfops %s (Jamf Pro device lifecycle automation)\n", Version)
	fmt.Fprintf(w, "  commit     %s\n", commit)
	fmt.Fprintf(w, "  built      %s with %s for %s/%s\n", BuildInfo.BuildTime, BuildInfo.GoVersion, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  functions  %s\n", strings.Join(functions.Names, ", "))
}

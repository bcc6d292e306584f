package cmd

import (
	"os"

	"rigger/internal/api"
	"rigger/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
// These follow common conventions so wrapping scripts can tell a permanent
// failure from one worth rescheduling.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalidInput indicates a bad path or topology argument.
	ExitCodeInvalidInput = 2
	// ExitCodeHostsFailed indicates at least one host failed its playbook run.
	ExitCodeHostsFailed = 3
	// ExitCodeRetryable indicates a transient condition (dark hosts, timeout).
	ExitCodeRetryable = 4
)

var debugLogging bool

// rootCmd represents the base command for the rigger application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rigger",
	Short: "Run Ansible playbooks against orchestrated compute nodes",
	Long: `rigger derives Ansible inventories from orchestration topology,
merges per-relationship contributions into per-instance state, and runs
playbooks against the result. Standalone invocations use an in-memory
instance state and a local resource directory.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if debugLogging {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")
}

// SetVersion sets the version for the root command.
// This is called from the main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles
// subcommands and flags.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "rigger version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error kind.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case api.IsInvalidInput(err) || api.IsInvalidTopology(err):
		return ExitCodeInvalidInput
	case api.IsHostFailure(err):
		return ExitCodeHostsFailed
	case api.IsRetryable(err):
		return ExitCodeRetryable
	default:
		return ExitCodeError
	}
}

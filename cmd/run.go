package cmd

import (
	"fmt"
	"strings"
	"time"

	"rigger/internal/config"
	"rigger/internal/local"
	"rigger/internal/operations"
	"rigger/internal/runner"
	"rigger/internal/topology"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var runFlags struct {
	playbook       string
	sources        string
	privateKey     string
	resourcesDir   string
	configDir      string
	env            []string
	timeout        time.Duration
	ignoreFailures bool
	ignoreDark     bool
	quiet          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a playbook against an inventory, standalone",
	Long: `Run executes a playbook outside an orchestration engine: instance
state lives in memory for the duration of the run and resources resolve
against a local directory. The inventory is a path to a YAML or INI hosts
file; inline private key material in a YAML inventory is materialized to a
0600 key file before the run.`,
	RunE: runPlaybook,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.playbook, "playbook", "", "Path to the playbook to run (required)")
	runCmd.Flags().StringVar(&runFlags.sources, "sources", "", "Path to the inventory sources file (required)")
	runCmd.Flags().StringVar(&runFlags.privateKey, "key", "", "Path to the SSH private key")
	runCmd.Flags().StringVar(&runFlags.resourcesDir, "resources", ".", "Directory resources are resolved against")
	runCmd.Flags().StringVar(&runFlags.configDir, "config", "", "Directory containing config.yaml")
	runCmd.Flags().StringArrayVar(&runFlags.env, "env", nil, "Extra environment for the runner process, KEY=VALUE (repeatable)")
	runCmd.Flags().DurationVar(&runFlags.timeout, "timeout", 0, "Abort the run after this duration (default from config)")
	runCmd.Flags().BoolVar(&runFlags.ignoreFailures, "ignore-failures", false, "Do not fail on host task failures")
	runCmd.Flags().BoolVar(&runFlags.ignoreDark, "ignore-dark", false, "Do not fail on unreachable hosts")
	runCmd.Flags().BoolVarP(&runFlags.quiet, "quiet", "q", false, "Suppress progress output")
	_ = runCmd.MarkFlagRequired("playbook")
	_ = runCmd.MarkFlagRequired("sources")
	rootCmd.AddCommand(runCmd)
}

func runPlaybook(cmd *cobra.Command, args []string) error {
	extraEnv, err := parseEnvFlags(runFlags.env)
	if err != nil {
		return err
	}

	cfg, err := config.Load(runFlags.configDir)
	if err != nil {
		return err
	}
	playbookRunner, err := runner.New(cfg)
	if err != nil {
		return err
	}

	ops := operations.New(nil, &local.DirDownloader{Root: runFlags.resourcesDir}, playbookRunner)
	view := localView()
	if err := ops.CreateWorkspace(view); err != nil {
		return err
	}
	defer ops.Cleanup(view)

	var s *spinner.Spinner
	if !runFlags.quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Running %s...", runFlags.playbook)
		s.Start()
	}

	result, err := ops.RunPlaybook(cmd.Context(), view, operations.RunRequest{
		Playbook:       runFlags.playbook,
		Sources:        runFlags.sources,
		PrivateKeyPath: runFlags.privateKey,
		ExtraEnv:       extraEnv,
		Timeout:        runFlags.timeout,
		IgnoreFailures: runFlags.ignoreFailures,
		IgnoreDark:     runFlags.ignoreDark,
	})
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if !runFlags.quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Playbook finished: %d failed, %d unreachable\n",
			len(result.Failures), len(result.Dark))
	}
	return nil
}

// localView builds the single-instance topology a standalone run executes
// under.
func localView() *topology.NodeView {
	node := &topology.Node{
		Name:          "local",
		Type:          topology.ComputeNodeType,
		TypeHierarchy: []string{topology.ComputeNodeType},
		Properties:    map[string]interface{}{},
	}
	instance := topology.NewInstance("local", local.NewMemoryStore())
	return topology.NewNodeView(node, instance, "local")
}

func parseEnvFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

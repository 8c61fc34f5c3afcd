package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/computerscienceiscool/containerpool/internal/actionsrc"
	"github.com/computerscienceiscool/containerpool/internal/backend"
	"github.com/computerscienceiscool/containerpool/internal/config"
	"github.com/computerscienceiscool/containerpool/internal/journal"
	"github.com/computerscienceiscool/containerpool/internal/pool"
	"github.com/computerscienceiscool/containerpool/internal/poollog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "poold",
	Short: "Container pool daemon",
	Long: `poold manages a warm pool of per-action containers backed by the local
Docker daemon: it serves cache-hit reuse, enforces idle/active capacity, and
garbage-collects containers that have sat idle too long.`,
	RunE: runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("docker-endpoint", config.DefaultSelfDockerEndpoint, "Docker daemon endpoint")
	rootCmd.PersistentFlags().String("image-tag", config.DefaultDockerImageTag, "Default Docker image tag for action images")
	rootCmd.PersistentFlags().String("network", config.DefaultInvokerContainerNetwork, "Docker network for created containers")
	rootCmd.PersistentFlags().Int("invoker-instance", 0, "This invoker's instance number, embedded in container names")
	rootCmd.PersistentFlags().String("action-prefix", config.DefaultActionContainerPrefix, "Container name prefix for actions owned by this invoker")
	rootCmd.PersistentFlags().String("edge-host", config.DefaultEdgeHost, "Edge host injected into action containers")
	rootCmd.PersistentFlags().String("whisk-version", config.DefaultWhiskVersion, "Platform version string injected into action containers")

	rootCmd.PersistentFlags().Int64("gc-threshold-seconds", config.DefaultGCThresholdSeconds, "Idle age in seconds before a container is GC'd")
	rootCmd.PersistentFlags().Float64("gc-frequency-seconds", config.DefaultGCFrequency.Seconds(), "Age-GC sweep interval in seconds")
	rootCmd.PersistentFlags().Int("max-idle", config.DefaultMaxIdle, "Maximum number of Idle containers kept warm")
	rootCmd.PersistentFlags().Int("max-active", config.DefaultMaxActive, "Maximum number of Active containers at once")
	rootCmd.PersistentFlags().String("log-dir", config.DefaultLogDir, "Directory container logs are flushed to on teardown")
	rootCmd.PersistentFlags().String("init-failure-policy", string(config.KeepWarm), "keep-warm or quarantine")

	rootCmd.PersistentFlags().String("repo-root", "", "Action source directory bind-mounted read-only into containers")
	rootCmd.PersistentFlags().String("action-repo", "", "Git URL to clone the action source from, pinned by --action-rev (overrides --repo-root)")
	rootCmd.PersistentFlags().String("action-rev", "", "Commit, tag, or branch to check out from --action-repo")
	rootCmd.PersistentFlags().String("journal-db", "", "Path to the SQLite pool-event journal (disabled if empty)")

	viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetEnvPrefix("POOLD")
	viper.AutomaticEnv()
	viper.SetConfigName("poold.config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("error reading config file: %v\n", err)
		}
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	bindRootFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("poold: config: %w", err)
	}
	cfg.RepoRoot = viper.GetString("repo-root")

	logger := poollog.New(os.Stderr)

	if repoURL := viper.GetString("action-repo"); repoURL != "" {
		rev := viper.GetString("action-rev")
		dir, err := actionsrc.FetchRevision(ctx, repoURL, rev)
		if err != nil {
			return fmt.Errorf("poold: fetch action source: %w", err)
		}
		defer actionsrc.Cleanup(dir)
		cfg.RepoRoot = dir
		logger.Infof("checked out %s@%s into %s", repoURL, rev, dir)
	}

	var j *journal.Journal
	if path := viper.GetString("journal-db"); path != "" {
		j, err = journal.Open(path)
		if err != nil {
			return fmt.Errorf("poold: journal: %w", err)
		}
		defer j.Close()
	}

	be := backend.NewDockerBackend(cfg.SelfDockerEndpoint, cfg.RepoRoot)

	p := pool.New(cfg, be, logger, j)
	defer p.Close()

	if err := p.KillStragglers(ctx); err != nil {
		logger.Warnf("startup straggler cleanup failed: %v", err)
	}

	logger.Infof("poold ready: max-idle=%d max-active=%d gc-threshold=%s", cfg.MaxIdle, cfg.MaxActive, cfg.GCThreshold)

	<-ctx.Done()
	logger.Infof("poold shutting down")
	p.ForceGC()
	return nil
}

// bindRootFlags mirrors the keys config.Load expects onto the flat flag
// names exposed on the command line, the way pkg/cli/root.go binds its own
// flags directly into viper's top-level namespace before building config.
func bindRootFlags() {
	viper.Set("docker.self_endpoint", viper.GetString("docker-endpoint"))
	viper.Set("docker.image_tag", viper.GetString("image-tag"))
	viper.Set("docker.network", viper.GetString("network"))
	viper.Set("invoker.instance", viper.GetInt("invoker-instance"))
	viper.Set("invoker.action_prefix", viper.GetString("action-prefix"))
	viper.Set("invoker.edge_host", viper.GetString("edge-host"))
	viper.Set("invoker.whisk_version", viper.GetString("whisk-version"))

	viper.Set("pool.gc_threshold_seconds", viper.GetInt64("gc-threshold-seconds"))
	viper.Set("pool.gc_frequency_seconds", viper.GetFloat64("gc-frequency-seconds"))
	viper.Set("pool.max_idle", viper.GetInt("max-idle"))
	viper.Set("pool.max_active", viper.GetInt("max-active"))
	viper.Set("pool.log_dir", viper.GetString("log-dir"))
	viper.Set("pool.init_failure_policy", viper.GetString("init-failure-policy"))

	viper.Set("repository.root", viper.GetString("repo-root"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

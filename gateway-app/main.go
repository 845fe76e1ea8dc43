package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/pvgateway/gateway-app/config"
	"github.com/compose-network/pvgateway/log"
)

const defaultConfigPath = "gateway-app/configs/config.yaml"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "pvgateway",
		Short: "Process variable to MQTT/NATS gateway",
		Long: "pvgateway bridges control-system process variables and a publish/subscribe transport.\n" +
			"Large waveforms are split into segments on send and reassembled on receive.",
		RunE:         runApp,
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfig,
	}
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(versionCmd, configCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file")

	rootCmd.PersistentFlags().String("transport", "", "transport kind (mqtt, nats, memory)")
	rootCmd.PersistentFlags().String("broker", "", "broker URL")
	rootCmd.PersistentFlags().String("client-id", "", "transport client id")

	rootCmd.PersistentFlags().String("listen-addr", "", "HTTP API listen address")
	rootCmd.PersistentFlags().Bool("metrics", false, "enable metrics")
	rootCmd.PersistentFlags().Duration("holdoff", 0, "endpoint hold-off after a failure")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var opts []log.Option
	if cfg.Log.File != "" {
		opts = append(opts, log.WithFile(cfg.Log.File))
	}
	logger, err := log.New(cfg.Log.Level, cfg.Log.Pretty, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("File logging disabled")
	}
	defer logger.Close()

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	logger.Info().
		Str("config_file", cfgFile).
		Str("transport", cfg.Transport.Kind).
		Str("broker", cfg.Transport.URL).
		Int("channels", len(cfg.Channels)).
		Int("simulated", len(cfg.Simulate)).
		Bool("api_enabled", cfg.API.Enabled).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runVersion(*cobra.Command, []string) {
	fmt.Printf("pvgateway\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Transport.Password != "" {
		cfg.Transport.Password = "********"
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flag("log-level").Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flag("log-pretty").Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}
	if cmd.Flag("log-file").Changed {
		cfg.Log.File, _ = cmd.Flags().GetString("log-file")
	}

	if cmd.Flag("transport").Changed {
		cfg.Transport.Kind, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flag("broker").Changed {
		cfg.Transport.URL, _ = cmd.Flags().GetString("broker")
	}
	if cmd.Flag("client-id").Changed {
		cfg.Transport.ClientID, _ = cmd.Flags().GetString("client-id")
	}

	if cmd.Flag("listen-addr").Changed {
		cfg.API.ListenAddr, _ = cmd.Flags().GetString("listen-addr")
	}
	if cmd.Flag("metrics").Changed {
		cfg.Metrics.Enabled, _ = cmd.Flags().GetBool("metrics")
	}
	if cmd.Flag("holdoff").Changed {
		cfg.Gateway.Holdoff, _ = cmd.Flags().GetDuration("holdoff")
	}
}

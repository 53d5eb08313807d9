package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tinychef/UserData/internal/config"
	"github.com/tinychef/UserData/internal/server"
	"github.com/tinychef/UserData/internal/service"
)

// configFlags are the settings every subcommand accepts on top of the
// environment.
type configFlags struct {
	dataDir        string
	billingFile    string
	engagementFile string
	logLevel       string
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.dataDir, "data-dir", config.DefaultDataDir, "Directory holding the exports (env DATA_DIR)")
	fs.StringVar(&f.billingFile, "billing-file", config.DefaultBillingFile, "RevenueCat export file name (env BILLING_FILE)")
	fs.StringVar(&f.engagementFile, "engagement-file", config.DefaultEngagementFile, "OneSignal export file name (env ENGAGEMENT_FILE)")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error (env LOG_LEVEL)")
}

// apply overrides cfg with the flags the user actually set.
func (f *configFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if fs.Changed("billing-file") {
		cfg.BillingFile = f.billingFile
	}
	if fs.Changed("engagement-file") {
		cfg.EngagementFile = f.engagementFile
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

// loadConfig reads the environment, layers the flags the user set on top
// and only then validates, so a flag can fix a bad environment value.
// validate is Config.Validate or Config.ValidateServer depending on what
// the command needs. Logs go to logOut.
func loadConfig(
	cmd *cobra.Command,
	flags *configFlags,
	logOut io.Writer,
	extra func(*config.Config),
	validate func(config.Config) error,
) (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	flags.apply(cmd.Flags(), &cfg)
	if extra != nil {
		extra(&cfg)
	}
	if err := validate(cfg); err != nil {
		return config.Config{}, nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "userdata",
		Short:         "Merge RevenueCat and OneSignal user exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.AddCommand(newServeCmd(), newMergeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		flags configFlags
		port  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the merged users over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, &flags, os.Stdout, func(c *config.Config) {
				if cmd.Flags().Changed("port") {
					c.Port = port
				}
			}, config.Config.ValidateServer)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			// Start blocks until SIGINT/SIGTERM.
			return srv.Start()
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "HTTP listen port (env PORT)")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var (
		flags  configFlags
		filter service.Filter
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Print the merged users as JSON",
		Long: `Load both exports once, merge them and write the resulting users to
stdout as a JSON array. The filter flags behave like the query parameters
of GET /api/users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, &flags, cmd.ErrOrStderr(), nil, config.Config.Validate)
			if err != nil {
				return err
			}

			svc := server.NewUserService(cfg, nil, logger)
			users, err := svc.List(context.Background(), filter)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(users)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&filter.StartDate, "start-date", "", "Keep users last seen on or after this YYYY-MM-DD (needs --end-date)")
	cmd.Flags().StringVar(&filter.EndDate, "end-date", "", "Keep users last seen on or before this YYYY-MM-DD (needs --start-date)")
	cmd.Flags().StringVar(&filter.SubscriptionStatus, "subscription-status", "", "Keep users with this subscription status")
	cmd.Flags().StringVar(&filter.Tag, "tag-filter", "", "Keep users with a matching tag, as key:value")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/telemetry"
)

var (
	// Global flags
	settingsPath    string
	environmentPath string
	remoteUser      string
	verbose         bool

	// Set by Execute; used for span resources.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	var logger *telemetry.Logger

	rootCmd := &cobra.Command{
		Use:   "frycooker",
		Short: "frycook - push configuration to a fleet of servers",
		Long: `frycooker applies recipes and cookbooks to the computers described in a
frycook environment.

A recipe configures one subsystem of a host by synchronizing package file
sets and running idempotent remote commands. A cookbook is an ordered list
of recipes that builds a complete system role. Targets are computer or
group names from the environment.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = telemetry.NewLogger(telemetry.LoggingFromEnv(verbose))
			if err != nil {
				return err
			}
			log.Logger = logger.Zerolog()
			cmd.SetContext(logger.NewComponentLogger(cmd.Name()).WithContext(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logger == nil {
				return nil
			}
			return logger.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", defaultPath("settings.yaml"), "settings document")
	rootCmd.PersistentFlags().StringVar(&environmentPath, "environment", defaultPath("environment.yaml"), "environment document")
	rootCmd.PersistentFlags().StringVarP(&remoteUser, "user", "u", "", "remote user (overrides remote_user)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/transports/ssh"
)

func newCleanupCommand() *cobra.Command {
	var (
		recipe string
		rude   bool
		dedupe bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup -r recipe [targets...]",
		Short: "Run a recipe's one-time cleanup action",
		Long: `Run a recipe's cleanup action on each target host.

Cleanup is independent of apply: no messages are queued and no pre-apply
checks run. It is meant for one-time migration work such as removing files
an older version of the recipe installed. Every host is attempted.`,
		Example: `  # Remove what an old nginx recipe left behind on the web group
  frycooker cleanup -r nginx web`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			hosts, err := ws.hosts(args, dedupe)
			if err != nil {
				return err
			}

			log.Info().Str("recipe", recipe).Strs("hosts", hosts).Msg("Running cleanup")

			runner := engine.NewRunner(ws.registry, ws.options(rude, true, nil), ssh.NewDialer(ws.settings.SSH))
			return runner.Cleanup(cmd.Context(), hosts, recipe)
		},
	}

	cmd.Flags().StringVarP(&recipe, "recipe", "r", "", "recipe whose cleanup runs")
	cmd.Flags().BoolVar(&rude, "rude", false, "allow disruptive actions such as service restarts")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "clean a host only once even if several targets name it")
	_ = cmd.MarkFlagRequired("recipe")

	return cmd
}

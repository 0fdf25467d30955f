package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/engine"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the settings and environment documents",
		Long: `Validate the settings and environment documents without contacting any host.

This command checks:
  - Both documents load, including imports
  - Settings field constraints
  - The environment against its CUE schema
  - Every group names only defined computers
  - Every declared component is a registered recipe or cookbook`,
		Example: `  frycooker validate
  frycooker validate --environment ./environment.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}

			var errs []error
			for _, group := range ws.env.GroupNames() {
				if _, err := engine.GroupHosts(ws.env, group); err != nil {
					errs = append(errs, fmt.Errorf("group %s: %w", group, err))
				}
			}

			components := 0
			for _, computer := range ws.env.ComputerNames() {
				items, err := ws.env.Components(computer)
				if err != nil {
					errs = append(errs, fmt.Errorf("computer %s: %w", computer, err))
					continue
				}
				for _, item := range items {
					components++
					if err := ws.registry.ValidateItem(item); err != nil {
						errs = append(errs, fmt.Errorf("computer %s: %w", computer, err))
					}
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			log.Info().
				Int("computers", len(ws.env.ComputerNames())).
				Int("groups", len(ws.env.GroupNames())).
				Int("components", components).
				Msg("Configuration is valid")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return err
		},
	}

	return cmd
}

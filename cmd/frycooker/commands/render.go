package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/session"
)

func newRenderCommand() *cobra.Command {
	var (
		outDir string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "render <package> <computer>",
		Short: "Render a package for a computer into a local directory",
		Long: `Render a package's file set for one computer into a local directory for
inspection. Templates are rendered with the same bindings a recipe's
push_package_file_set would use, deletion manifests are honored and
metadata modes are applied. Ownership is only logged.

Output goes to <module_dir>/<computer>/<package> unless --out is given.`,
		Example: `  frycooker render nginx web1
  frycooker render hosts web1 --out /tmp/hosts-web1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, computer := args[0], args[1]

			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			if !ws.env.HasComputer(computer) {
				return errdefs.NewInvalidTargetError(computer)
			}

			dest := outDir
			if dest == "" {
				dest = filepath.Join(ws.settings.ModuleDir, computer, pkg)
			}

			opts := ws.options(false, true, params)
			rc := engine.NewRunContext(computer, session.NewLocal(dest, computer), opts)
			if err := rc.PushPackageFileSet(cmd.Context(), pkg, nil); err != nil {
				return err
			}

			stats := rc.Files()
			log.Info().
				Str("package", pkg).
				Str("computer", computer).
				Str("dir", dest).
				Int("written", stats.Written).
				Int("rendered", stats.Rendered).
				Msg("Package rendered")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dest)
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.Flags().StringToStringVar(&params, "param", nil, "named parameter for templates, key=value (repeatable)")

	return cmd
}

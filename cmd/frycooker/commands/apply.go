package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/stores"
	"github.com/jfarrimo/frycook/pkg/telemetry"
	"github.com/jfarrimo/frycook/pkg/transports/ssh"
)

func newApplyCommand() *cobra.Command {
	var (
		all          bool
		recipeNames  []string
		cookbooks    []string
		dryRun       bool
		messagesOnly bool
		update       bool
		rude         bool
		noPrompt     bool
		params       map[string]string
		abortOnError bool
		dedupe       bool
	)

	cmd := &cobra.Command{
		Use:   "apply [targets...]",
		Short: "Apply recipes and cookbooks to computers",
		Long: `Apply recipes and cookbooks to the computers named by targets.

A target is a computer name or a group name; a computer wins over a group
with the same name. Hosts are processed one at a time in target order.

This command:
  - Resolves targets and builds each host's run list
  - Shows the run list and asks for confirmation (unless --no-prompt)
  - Opens one SSH session per host and runs each work item's lifecycle
  - Stops a host at its first failing work item and moves to the next host
  - Prints the aggregated pre- and post-apply messages`,
		Example: `  # Apply each computer's declared components
  frycooker apply --all web mail1

  # Apply the base cookbook then the motd recipe to the web group
  frycooker apply -c base -r motd web

  # Show what would happen without connecting
  frycooker apply --dry-run -c web web1

  # Restart services and pass a parameter to recipes
  frycooker apply --rude --param admin_email=ops@example.com -r postfix mail1`,
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

			sel := engine.Selection{All: all, Cookbooks: cookbooks, Recipes: recipeNames}
			rl, err := engine.BuildRunList(ws.env, hosts, sel)
			if err != nil {
				return err
			}
			if err := ws.registry.Validate(rl); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := ws.options(rude, noPrompt, params)
			ro := engine.RunOptions{
				Targets:        args,
				Mode:           sel.Mode(),
				DryRun:         dryRun,
				MessagesOnly:   messagesOnly,
				UpdatePackages: update,
				AbortOnError:   abortOnError,
			}

			if dryRun || messagesOnly {
				if dryRun {
					printRunList(out, rl)
				}
				_, messages, err := engine.NewRunner(ws.registry, opts, nil).Run(cmd.Context(), rl, ro)
				if err != nil {
					return err
				}
				return messages.Print(out)
			}

			if !noPrompt {
				printRunList(out, rl)
				ok, err := confirm(cmd.InOrStdin(), out, "Apply this run list?")
				if err != nil {
					return err
				}
				if !ok {
					log.Info().Msg("Apply cancelled")
					return nil
				}
			}

			return runApply(cmd.Context(), out, ws, opts, rl, ro)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "apply each computer's declared components")
	cmd.Flags().StringArrayVarP(&recipeNames, "recipe", "r", nil, "recipe to apply (repeatable)")
	cmd.Flags().StringArrayVarP(&cookbooks, "cookbook", "c", nil, "cookbook to apply (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the run list without applying")
	cmd.Flags().BoolVar(&messagesOnly, "messages", false, "print pre- and post-apply messages without applying")
	cmd.Flags().BoolVar(&update, "update", false, "refresh the package index before applying")
	cmd.Flags().BoolVar(&rude, "rude", false, "allow disruptive actions such as service restarts")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask for confirmation or input")
	cmd.Flags().StringToStringVar(&params, "param", nil, "named parameter for recipes, key=value (repeatable)")
	cmd.Flags().BoolVar(&abortOnError, "abort-on-error", false, "stop the whole run at the first failed host")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "apply to a host only once even if several targets name it")

	cmd.MarkFlagsOneRequired("all", "recipe", "cookbook")
	cmd.MarkFlagsMutuallyExclusive("all", "recipe")
	cmd.MarkFlagsMutuallyExclusive("all", "cookbook")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "messages")

	return cmd
}

// runApply executes the run list against live hosts with the journal,
// metrics and tracer the settings ask for.
func runApply(ctx context.Context, out io.Writer, ws *workspace, opts engine.Options, rl *engine.RunList, ro engine.RunOptions) error {
	metrics := telemetry.NewRunMetrics()
	runnerOpts := []engine.RunnerOption{engine.WithObserver(metrics)}

	if ws.settings.JournalPath != "" {
		journal, err := stores.Open(ctx, ws.settings.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open run journal: %w", err)
		}
		defer journal.Close()
		runnerOpts = append(runnerOpts, engine.WithJournal(journal))
	}

	tracer, err := telemetry.NewTracer(ws.settings.Tracing, telemetry.WithVersion(buildVersion))
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()
	runnerOpts = append(runnerOpts, engine.WithTracer(tracer))

	runner := engine.NewRunner(ws.registry, opts, ssh.NewDialer(ws.settings.SSH), runnerOpts...)
	run, messages, runErr := runner.Run(ctx, rl, ro)
	if run == nil {
		return runErr
	}

	if err := messages.Print(out); err != nil {
		return err
	}
	printRunSummary(out, run)

	metrics.RecordRun(run)
	if err := metrics.WriteTextfile(ws.settings.MetricsPath); err != nil {
		log.Warn().Err(err).Str("path", ws.settings.MetricsPath).Msg("Failed to write metrics")
	}

	return runErr
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N] ", question); err != nil {
		return false, err
	}
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

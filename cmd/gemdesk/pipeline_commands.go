package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"gemdesk/internal/config"
	"gemdesk/internal/ingest"
	"gemdesk/internal/progress"
)

func newPipelineCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newProcessCommand(ctx),
		newRetryCommand(ctx),
		newProgressCommand(ctx),
		newLockCommand(ctx),
		newEnqueueCommand(ctx),
	}
}

func pipelineArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if _, ok := (&config.Config{}).PipelineRoot(args[0]); !ok {
		return fmt.Errorf("unknown pipeline %q (expected one of %v)", args[0], config.Pipelines())
	}
	return nil
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "process <pipeline>",
		Short:     "Import the next pending spreadsheet of a pipeline",
		Args:      pipelineArg,
		ValidArgs: config.Pipelines(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			p, err := rt.pipeline(args[0])
			if err != nil {
				return err
			}
			outcome, err := p.ProcessNextPending(cmd.Context())
			if err != nil {
				return fmt.Errorf("process %s: %w", p.Name(), err)
			}
			rt.refreshBrands(cmd.Context(), p, outcome)
			return reportOutcome(cmd, p, outcome)
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "retry <pipeline>",
		Short:     "Re-import every failed spreadsheet of a pipeline",
		Args:      pipelineArg,
		ValidArgs: config.Pipelines(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			p, err := rt.pipeline(args[0])
			if err != nil {
				return err
			}
			outcome, err := p.RetryAllFailed(cmd.Context())
			if err != nil {
				return fmt.Errorf("retry %s: %w", p.Name(), err)
			}
			rt.refreshBrands(cmd.Context(), p, outcome)
			return reportOutcome(cmd, p, outcome)
		},
	}
}

func reportOutcome(cmd *cobra.Command, p *ingest.Pipeline, outcome ingest.Outcome) error {
	out := cmd.OutOrStdout()
	switch outcome {
	case ingest.OutcomeLocked:
		fmt.Fprintf(out, "%s: another run holds the lock, nothing done\n", p.Name())
		return nil
	case ingest.OutcomeNoPending:
		fmt.Fprintf(out, "%s: no pending files\n", p.Name())
		return nil
	case ingest.OutcomeNoFailed:
		fmt.Fprintf(out, "%s: no failed files\n", p.Name())
		return nil
	}
	fmt.Fprintf(out, "%s: %s\n", p.Name(), outcome)
	doc, err := p.ProgressStore().Load()
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	fmt.Fprintln(out, renderProgress(doc, shouldColorize(out)))
	return nil
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "progress <pipeline>",
		Short:     "Show the progress document of a pipeline",
		Args:      pipelineArg,
		ValidArgs: config.Pipelines(),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.layoutOnly(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				raw, err := p.Progress()
				if err != nil {
					return fmt.Errorf("read progress: %w", err)
				}
				_, err = out.Write(append(raw, '\n'))
				return err
			}
			doc, err := p.ProgressStore().Load()
			if err != nil {
				return fmt.Errorf("load progress: %w", err)
			}
			if len(doc) == 0 {
				fmt.Fprintf(out, "%s: no progress recorded\n", p.Name())
				return nil
			}
			fmt.Fprintln(out, renderProgress(doc, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw progress document")
	return cmd
}

func newLockCommand(ctx *commandContext) *cobra.Command {
	var clearStale bool
	cmd := &cobra.Command{
		Use:       "lock <pipeline>",
		Short:     "Inspect (or clear a stale) pipeline lock",
		Args:      pipelineArg,
		ValidArgs: config.Pipelines(),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.layoutOnly(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if clearStale {
				cleared, err := p.Lock().ClearStale()
				if err != nil {
					return err
				}
				if cleared {
					fmt.Fprintf(out, "%s: stale lock cleared\n", p.Name())
				} else {
					fmt.Fprintf(out, "%s: nothing to clear\n", p.Name())
				}
				return nil
			}

			state, err := p.Lock().Inspect()
			if err != nil {
				return err
			}
			pid := "-"
			if state.PID > 0 {
				pid = strconv.Itoa(state.PID)
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Pipeline", "Locked", "PID", "Stale", "Path"},
				[][]string{{p.Name(), yesNo(state.Present), pid, yesNo(state.Stale), p.Lock().Path()}},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearStale, "clear-stale", false, "Remove the lock marker when its holder is gone")
	return cmd
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <pipeline> <file>...",
		Short: "Copy spreadsheets into a pipeline's pending queue",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(2)(cmd, args); err != nil {
				return err
			}
			return pipelineArg(cmd, args[:1])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.layoutOnly(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, src := range args[1:] {
				dst, err := p.Enqueue(src)
				if err != nil {
					return fmt.Errorf("enqueue %s: %w", src, err)
				}
				fmt.Fprintf(out, "Queued %s\n", dst)
			}
			return nil
		},
	}
}

// renderProgress lists files in name order with the idle marker last.
func renderProgress(doc progress.Document, colorize bool) string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		if key != progress.SystemKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if _, ok := doc[progress.SystemKey]; ok {
		keys = append(keys, progress.SystemKey)
	}

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rec := doc[key]
		rows = append(rows, []string{
			key,
			statusLabel(rec.Status, colorize),
			strconv.Itoa(rec.Inserted),
			strconv.Itoa(rec.Failed),
			rec.Updated,
			rec.Message,
		})
	}
	return renderTable(
		[]string{"File", "Status", "Inserted", "Failed", "Updated", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

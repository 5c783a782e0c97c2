package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"commentreview/internal/schedule"
	"commentreview/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "commentreview",
		Short:        "Annotate public comments with an LLM and cluster their themes",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(
		newProcessCmd(out),
		newClusterCmd(out),
		newWatchCmd(),
		newRunsCmd(out),
	)
	return root
}

// withRuntime builds the runtime, runs fn and always releases it.
func withRuntime(fn func(rt *runtime) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()
	if err := fn(rt); err != nil {
		rt.log.Error("command failed", "error", err)
		return err
	}
	return nil
}

func newProcessCmd(out io.Writer) *cobra.Command {
	var opts processOptions
	var uidCol, nameCol, dateCol string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run redaction review and theme extraction on every comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(rt *runtime) error {
				if uidCol != "" || nameCol != "" || dateCol != "" {
					rt.log.Debug("reserved columns accepted", "uid_column", uidCol, "name_column", nameCol, "date_column", dateCol)
				}
				res, err := rt.process(cmd.Context(), opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Processed %d rows -> %s\n", res.Rows, res.OutputPath)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "input spreadsheet (.xlsx, .csv, .tsv)")
	f.StringVar(&opts.output, "output", "", "output path; a timestamp is inserted before the extension")
	f.StringVar(&opts.textColumn, "text-column", "", "column holding the comment text (default from config, \"comment\")")
	f.StringVar(&uidCol, "uid-column", "", "row identifier column (reserved)")
	f.StringVar(&nameCol, "name-column", "", "submitter name column (reserved)")
	f.StringVar(&dateCol, "date-column", "", "submission date column (reserved)")
	f.IntVar(&opts.workers, "workers", 0, "parallel rows (default from config, then CPU count)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newClusterCmd(out io.Writer) *cobra.Command {
	var (
		input, output, themesColumn string
		minClusterSize              int
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group the themes of a processed table into clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minClusterSize < 2 {
				return fmt.Errorf("--min-cluster-size must be at least 2")
			}
			return withRuntime(func(rt *runtime) error {
				res, err := rt.cluster(cmd.Context(), input, output, themesColumn, minClusterSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Produced %d clusters -> %s\n", res.Clusters, res.OutputPath)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "processed table containing a themes column")
	f.StringVar(&output, "output", "", "summary output path, replaced if it exists")
	f.StringVar(&themesColumn, "themes-column", "themes", "column holding serialized theme lists")
	f.IntVar(&minClusterSize, "min-cluster-size", 5, "smallest group HDBSCAN reports as a cluster")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process new spreadsheets from the inbox directory on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(rt *runtime) error {
				if err := os.MkdirAll(rt.cfg.WatchInboxDir, 0o755); err != nil {
					return fmt.Errorf("create inbox: %w", err)
				}
				w := &schedule.Watcher{
					InboxDir:  rt.cfg.WatchInboxDir,
					OutboxDir: rt.cfg.WatchOutputDir,
					Seen: func(fp string) (bool, error) {
						return sqlite.CompletedRunExists(rt.db, fp)
					},
					Process: func(ctx context.Context, in, out, fp string) error {
						res, err := rt.process(ctx, processOptions{input: in, output: out, fingerprint: fp})
						if err != nil {
							return err
						}
						rt.log.Info("inbox file processed", "input", in, "output", res.OutputPath, "rows", res.Rows)
						return nil
					},
					Log: rt.log,
				}
				return w.Run(cmd.Context(), rt.cfg.WatchSchedule)
			})
		},
	}
}

func newRunsCmd(out io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent process and cluster runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(rt *runtime) error {
				runs, err := sqlite.ListRuns(rt.db, limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tROWS\tFAILED\tINPUT\tOUTPUT")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
						r.StartedAt.Local().Format(time.DateTime), r.Kind, r.Status, r.Rows, r.FailedRows, r.Input, r.Output)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

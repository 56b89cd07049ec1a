package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/checker"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Check model files against the schema",
		Long: `Check model files against the schema and store the issues.

Files are imported in parallel and checked one at a time. Ctrl-C aborts the
run; files already checked keep their issues.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheck,
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("json", false, "print the run report as JSON")
	return cmd
}

// addRunFlags adds the flags shared by every command that starts runs.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("export", "", "copy the issue database here after a run, a path or s3://bucket/key (SOMCHECK_EXPORT_PATH)")
	cmd.Flags().StringSlice("exclude", nil, "schema entity ids left out of the check (SOMCHECK_EXCLUDE)")
	cmd.Flags().Int("max-imports", 0, "files imported in parallel (SOMCHECK_MAX_IMPORTS)")
}

func runCheck(cmd *cobra.Command, files []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	sched, err := env.scheduler(ctx)
	if err != nil {
		return err
	}
	report, err := sched.Run(ctx, checker.Request{Files: files})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
		fmt.Fprintf(out, "issue database: %s\n", env.store.Path())
	}
	return reportError(report)
}

// reportError turns an aborted or partly failed run into a non zero exit.
func reportError(report *checker.Report) error {
	if report.Aborted() {
		return errors.New("check run aborted")
	}
	if n := len(report.Failures); n > 0 {
		return fmt.Errorf("%d problem(s) during the check run", n)
	}
	return nil
}

func printReport(out io.Writer, report *checker.Report) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tINSTANCES\tSKIPPED\tISSUES")
	for _, f := range report.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", f.File, f.Status, f.Instances, f.Skipped, f.Issues)
	}
	tw.Flush()

	for _, failure := range report.Failures {
		fmt.Fprintf(out, "failed: %s\n", failure)
	}
	fmt.Fprintf(out, "run %s %s after %s: %d issue(s)\n",
		report.ID, report.State, report.Duration.Round(time.Millisecond), report.IssueCount())
}

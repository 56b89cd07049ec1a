package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

func newIssuesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List the issues stored by earlier runs",
		Args:  cobra.NoArgs,
		RunE:  runIssues,
	}
	cmd.Flags().String("file", "", "only issues of this model file")
	cmd.Flags().String("guid", "", "only issues of this instance")
	cmd.Flags().String("type", "", "only issues of this type, e.g. RANGE")
	cmd.Flags().String("date", "", "only issues of this day (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 50, "maximum number of issues")
	cmd.Flags().Int("offset", 0, "issues to skip")
	cmd.Flags().Bool("counts", false, "print the number of issues per type instead")
	cmd.Flags().Bool("json", false, "print JSON")
	return cmd
}

func runIssues(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == storage.DriverSQLite {
		if cfg.Storage.Path == "" {
			return errors.New("an issue database is required (--db or SOMCHECK_DB_PATH)")
		}
		if _, err := os.Stat(cfg.Storage.Path); err != nil {
			return fmt.Errorf("issue database: %w", err)
		}
	}

	flags := cmd.Flags()
	filter := storage.IssueFilter{Project: cfg.Check.Project}
	filter.File, _ = flags.GetString("file")
	filter.GUID, _ = flags.GetString("guid")
	filter.Date, _ = flags.GetString("date")
	filter.Limit, _ = flags.GetInt("limit")
	filter.Offset, _ = flags.GetInt("offset")
	if t, _ := flags.GetString("type"); t != "" {
		if filter.Type, err = validation.ParseIssueType(t); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg, newLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	asJSON, _ := flags.GetBool("json")
	out := cmd.OutOrStdout()

	if counts, _ := flags.GetBool("counts"); counts {
		byType, err := store.IssueCounts(ctx, filter)
		if err != nil {
			return err
		}
		if asJSON {
			named := make(map[string]int, len(byType))
			for t, n := range byType {
				named[t.String()] = n
			}
			return writeJSON(out, named)
		}
		printCounts(out, byType)
		return nil
	}

	records, err := store.Issues(ctx, filter)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, records)
	}
	printIssues(out, records)
	return nil
}

func printIssues(out io.Writer, records []storage.IssueRecord) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFILE\tGUID\tTYPE\tATTRIBUTE\tDESCRIPTION")
	for _, r := range records {
		attr := r.Attribute
		if r.PropertySet != "" {
			attr = r.PropertySet + ":" + r.Attribute
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.CreationDate, r.File, r.GUID, r.Type, attr, r.Description)
	}
	tw.Flush()
}

func printCounts(out io.Writer, counts map[validation.IssueType]int) {
	types := make([]validation.IssueType, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, counts[t])
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

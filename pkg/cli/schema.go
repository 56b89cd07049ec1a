package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/schema"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [FILE]",
		Short: "Show a schema and its integrity warnings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSchema,
	}
	cmd.Flags().StringSlice("exclude", nil, "schema entity ids left out of the check (SOMCHECK_EXCLUDE)")
	cmd.Flags().Bool("strict", false, "fail when the schema has integrity warnings")
	return cmd
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Check.SchemaPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("a schema file is required")
	}

	// Load warnings are printed below, not logged.
	model, err := schema.LoadFile(path, schema.WithLogger(quietLogger()))
	if err != nil {
		return err
	}
	snap := model.Snapshot(schema.WithExcluded(cfg.Check.Excluded...))

	out := cmd.OutOrStdout()
	objects, psets, attrs := model.Registry().Len()
	fmt.Fprintf(out, "%s %s: %d objects, %d property sets, %d attributes\n",
		model.Name(), model.Version(), objects, psets, attrs)
	printObjects(out, snap)

	warnings := append(model.Warnings(), model.CheckIntegrity()...)
	warnings = append(warnings, snap.Warnings()...)
	warnings = uniqueWarnings(warnings)
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && len(warnings) > 0 {
		return fmt.Errorf("schema has %d integrity warning(s)", len(warnings))
	}
	return nil
}

func printObjects(out io.Writer, snap *schema.Snapshot) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENT\tABBREV\tNAME\tATTRIBUTES\tCHECKED")
	for _, o := range snap.Objects() {
		n := 0
		for _, p := range o.PropertySets() {
			n += len(p.Attributes())
		}
		ident := o.IdentValue()
		if o.IsConcept() {
			ident = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", ident, o.Abbreviation(), o.Name(), n, o.Tested())
	}
	tw.Flush()
}

func uniqueWarnings(in []schema.Warning) []schema.Warning {
	seen := make(map[schema.Warning]bool, len(in))
	out := in[:0]
	for _, w := range in {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func newCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare OLD NEW",
		Short: "List the differences between two schema files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldModel, err := schema.LoadFile(args[0], schema.WithLogger(quietLogger()))
			if err != nil {
				return err
			}
			newModel, err := schema.LoadFile(args[1], schema.WithLogger(quietLogger()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			changes := schema.Diff(oldModel, newModel)
			if len(changes) == 0 {
				fmt.Fprintln(out, "schemas are identical")
				return nil
			}
			for _, c := range changes {
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

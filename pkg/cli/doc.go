// Package cli provides the somcheck command-line interface.
//
// # Commands
//
// check: Check model files once and print the run report
//
//	somcheck check --schema schema.yaml --db issues.db haus_a.yaml haus_b.yaml
//
// serve: Serve the issue API and run control
//
//	somcheck serve --schema schema.yaml --db issues.db --model-root ./models
//
// watch: Re-check files when they change
//
//	somcheck watch --schema schema.yaml --debounce 1s ./models/haus_a.yaml
//
// schedule: Check files on a cron schedule
//
//	somcheck schedule --schema schema.yaml --cron "0 2 * * *" ./models/*.yaml
//
// issues: Query stored issues
//
//	somcheck issues --db issues.db --file haus_a.yaml --type RANGE
//	somcheck issues --db issues.db --counts
//
// schema: Show a schema and its integrity warnings
//
//	somcheck schema --strict schema.yaml
//
// compare: Diff two schema versions
//
//	somcheck compare schema-1.0.yaml schema-2.0.yaml
//
// # Configuration
//
// Every command reads the SOMCHECK_* environment variables described in
// pkg/config. Flags override them for that invocation.
package cli

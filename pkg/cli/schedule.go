package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/somcheck/pkg/checker"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule --cron SPEC FILE...",
		Short: "Check model files on a cron schedule",
		Long: `Check model files on a cron schedule.

SPEC is a standard five field cron expression or a descriptor such as
@daily or @every 6h. A run that is still busy when the next one is due
causes that run to be skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSchedule,
	}
	addRunFlags(cmd)
	cmd.Flags().String("cron", "", "cron expression")
	cmd.MarkFlagRequired("cron")
	return cmd
}

func runSchedule(cmd *cobra.Command, files []string) error {
	spec, _ := cmd.Flags().GetString("cron")
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

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

	logger := env.logger.Entry()
	out := cmd.OutOrStdout()
	c := cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := c.AddFunc(spec, scheduledRun(ctx, sched, files, logger, func(r *checker.Report) { printReport(out, r) })); err != nil {
		return err
	}

	c.Start()
	logger.WithField("cron", spec).Info("scheduled checks started")
	<-ctx.Done()

	// A cancelled ctx aborts the active run; wait for it to finish.
	<-c.Stop().Done()
	return nil
}

// scheduledRun builds the cron job. Errors are logged since there is no
// caller to return them to.
func scheduledRun(ctx context.Context, sched *checker.Scheduler, files []string, logger logrus.FieldLogger, done func(*checker.Report)) func() {
	return func() {
		report, err := sched.Run(ctx, checker.Request{Files: files})
		switch {
		case errors.Is(err, checker.ErrRunInProgress):
			logger.Warn("previous check run still active, skipping")
			return
		case err != nil:
			logger.WithError(err).Error("scheduled check run failed")
			return
		}
		done(report)
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

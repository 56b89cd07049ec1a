// Package checker schedules check runs over model files.
//
// A run moves through Idle -> Importing -> Checking and ends Idle again, or
// Aborted when Abort was called. Files are imported concurrently (bounded by
// Config.MaxImports); every imported file becomes one task on a queue with a
// single worker, so checks and their store writes never overlap. Abort is
// cooperative: it is sampled before each file and before each instance, and
// a file whose check was interrupted writes nothing.
//
//	sched, err := checker.NewScheduler(snap, validator, reader, store, checker.DefaultConfig())
//	report, err := sched.Run(ctx, checker.Request{Files: files, Project: "Neubau"})
//	for _, f := range report.Failures {
//		log.Println(f)
//	}
package checker

// Package async provides goroutine helpers with panic recovery.
//
// SafeGo runs a fire-and-forget task and logs its failure. WorkerPool runs
// submitted tasks on a fixed set of workers; the check scheduler uses a pool
// of one worker as its serialized check queue:
//
//	queue := async.NewWorkerPool(ctx, 1, "checks", async.WithLogger(logger))
//	_ = queue.Submit(func(ctx context.Context) error { return checkFile(ctx, f) })
//	_ = queue.Shutdown(0) // drain
package async

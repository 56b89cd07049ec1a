// Package progress aggregates task progress of a check run.
//
// Import and check tasks send Updates on a channel; a single Aggregator
// goroutine folds them into a Snapshot per phase (0 to 100 percent plus the
// latest status text) and hands every snapshot to its sinks. LogSink,
// RedisSink and ChannelSink are provided.
package progress

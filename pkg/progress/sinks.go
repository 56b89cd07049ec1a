package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// LogSink writes snapshots to a logger. Per-file percent updates go to
// debug, phase changes and completed tasks to info.
type LogSink struct {
	logger logrus.FieldLogger
	last   Snapshot
}

// NewLogSink creates a LogSink.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish implements Sink.
func (l *LogSink) Publish(_ context.Context, s Snapshot) error {
	entry := l.logger.WithFields(logrus.Fields{
		"phase":   s.Phase,
		"percent": s.Percent,
		"file":    s.File,
	})
	if s.Phase != l.last.Phase || s.Completed != l.last.Completed {
		entry.Info(s.Status)
	} else {
		entry.Debug(s.Status)
	}
	l.last = s
	return nil
}

// RedisSink publishes snapshots as JSON on a redis channel and keeps the
// latest one under "<channel>:current".
type RedisSink struct {
	client  *redis.Client
	channel string
}

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "somcheck:progress"

// NewRedisSink creates a RedisSink.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Channel is the pub/sub channel name.
func (r *RedisSink) Channel() string { return r.channel }

// Publish implements Sink.
func (r *RedisSink) Publish(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.channel+":current", data, 0)
	pipe.Publish(ctx, r.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

// ChannelSink forwards snapshots to a Go channel. A full channel drops the
// snapshot rather than stalling the aggregator.
type ChannelSink struct {
	ch chan<- Snapshot
}

// NewChannelSink creates a ChannelSink.
func NewChannelSink(ch chan<- Snapshot) *ChannelSink {
	return &ChannelSink{ch: ch}
}

// Publish implements Sink.
func (c *ChannelSink) Publish(_ context.Context, s Snapshot) error {
	select {
	case c.ch <- s:
	default:
	}
	return nil
}

package metrics

import "spotgate/logger"

// DropMetric identifies the metric name emitted when a stream frame or event
// is discarded.
type DropMetric string

const (
	// DropMetricStreamFrame records frames the multiplexer could not dispatch.
	DropMetricStreamFrame DropMetric = "stream_frames_dropped"
	// DropMetricEventChannel records decoded events lost to a full consumer channel.
	DropMetricEventChannel DropMetric = "stream_events_dropped"
	// DropMetricArchive records klines rejected by a full archive buffer.
	DropMetricArchive DropMetric = "klines_archive_dropped"
)

// EmitDropMetric logs and emits a metric representing one dropped item.
// Optional metadata (symbol, stream type, reason) is attached as fields when
// provided so drops can be aggregated per stream.
func EmitDropMetric(log *logger.Log, metric DropMetric, symbol, streamType, reason string) {
	fields := logger.Fields{}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	if streamType != "" {
		fields["stream_type"] = streamType
	}
	if reason != "" {
		fields["reason"] = reason
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}

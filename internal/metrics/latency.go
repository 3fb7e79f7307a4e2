package metrics

import (
	"time"

	"spotgate/logger"
)

// EmitLatency records how long an operation took as <operation>_latency_ms.
func EmitLatency(log *logger.Log, component, operation string, d time.Duration, fields logger.Fields) {
	f := cloneFields(fields)
	f["unit"] = "milliseconds"
	EmitMetric(log, component, operation+"_latency_ms", float64(d)/float64(time.Millisecond), "gauge", f)
}

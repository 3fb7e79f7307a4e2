package metrics

import (
	"strings"
	"sync"

	"spotgate/config"
)

// Feature names a group of metrics that can be switched off in configuration.
type Feature string

const (
	FeatureUsedWeight   Feature = "used_weight"
	FeatureOrderLatency Feature = "order_latency"
	FeatureStreamDrops  Feature = "stream_drops"
)

var (
	featuresMu sync.RWMutex
	features   = map[Feature]bool{
		FeatureUsedWeight:   true,
		FeatureOrderLatency: true,
		FeatureStreamDrops:  true,
	}
)

// Configure applies the feature switches from the metrics configuration.
func Configure(cfg config.MetricsConfig) {
	featuresMu.Lock()
	features[FeatureUsedWeight] = cfg.UsedWeight
	features[FeatureOrderLatency] = cfg.OrderLatency
	features[FeatureStreamDrops] = cfg.StreamDrops
	featuresMu.Unlock()
}

func IsFeatureEnabled(f Feature) bool {
	featuresMu.RLock()
	defer featuresMu.RUnlock()
	enabled, ok := features[f]
	return !ok || enabled
}

// featureForMetric maps a metric name to the feature that gates it. Metrics
// outside every feature are always emitted.
func featureForMetric(name string) (Feature, bool) {
	switch {
	case strings.HasPrefix(name, "used_weight"), strings.HasPrefix(name, "order_count"):
		return FeatureUsedWeight, true
	case strings.HasSuffix(name, "_latency_ms"):
		return FeatureOrderLatency, true
	case strings.HasSuffix(name, "_dropped"):
		return FeatureStreamDrops, true
	}
	return "", false
}

func metricEnabled(name string) bool {
	f, ok := featureForMetric(name)
	if !ok {
		return true
	}
	return IsFeatureEnabled(f)
}

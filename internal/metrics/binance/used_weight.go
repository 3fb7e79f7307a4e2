package binancemetrics

import (
	"net/http"
	"strconv"
	"strings"

	"spotgate/internal/metrics"
	"spotgate/logger"
)

const (
	usedWeightPrefix = "X-Mbx-Used-Weight-"
	orderCountPrefix = "X-Mbx-Order-Count-"
)

// ReportUsedWeight inspects the venue's used-weight headers and emits one
// used_weight gauge per rate window. It returns the 1m weight (or the first
// window found) and whether any header was parsed.
func ReportUsedWeight(log *logger.Log, header http.Header, component, endpoint string) (float64, bool) {
	if header == nil {
		return 0, false
	}
	if log == nil {
		log = logger.GetLogger()
	}

	var (
		reported bool
		primary  float64
	)
	for _, w := range windowHeaders(header, usedWeightPrefix) {
		used, err := strconv.ParseFloat(w.value, 64)
		if err != nil {
			log.WithComponent(component).WithFields(logger.Fields{
				"endpoint": endpoint,
				"header":   w.key,
				"value":    w.value,
			}).WithError(err).Debug("failed to parse used weight header")
			continue
		}

		metrics.EmitMetric(log, component, "used_weight", used, "gauge", logger.Fields{
			"endpoint": endpoint,
			"window":   w.window,
		})
		if !reported || w.window == "1m" {
			primary = used
		}
		reported = true
	}

	// Older deployments send an unsuffixed header for the 1m window.
	if !reported {
		if value := header.Get("X-Mbx-Used-Weight"); value != "" {
			if used, err := strconv.ParseFloat(value, 64); err == nil {
				metrics.EmitMetric(log, component, "used_weight", used, "gauge", logger.Fields{
					"endpoint": endpoint,
					"window":   "1m",
				})
				return used, true
			}
		}
	}

	return primary, reported
}

// ReportOrderCount emits order_count gauges from the X-MBX-ORDER-COUNT-*
// headers returned by order placement endpoints.
func ReportOrderCount(log *logger.Log, header http.Header, component, symbol string) int {
	if header == nil {
		return 0
	}
	if log == nil {
		log = logger.GetLogger()
	}

	n := 0
	for _, w := range windowHeaders(header, orderCountPrefix) {
		count, err := strconv.ParseInt(w.value, 10, 64)
		if err != nil {
			continue
		}
		metrics.EmitMetric(log, component, "order_count", count, "gauge", logger.Fields{
			"symbol": symbol,
			"window": w.window,
		})
		n++
	}
	return n
}

type windowHeader struct {
	key    string
	window string
	value  string
}

// windowHeaders returns every header starting with prefix, keyed by the
// lower-cased window suffix (1s, 1m, 10s, 1d).
func windowHeaders(header http.Header, prefix string) []windowHeader {
	var out []windowHeader
	for key, values := range header {
		canonical := http.CanonicalHeaderKey(key)
		if !strings.HasPrefix(canonical, prefix) || len(values) == 0 {
			continue
		}
		out = append(out, windowHeader{
			key:    canonical,
			window: strings.ToLower(strings.TrimPrefix(canonical, prefix)),
			value:  strings.TrimSpace(values[0]),
		})
	}
	return out
}

package metrics

import (
	"sync"
	"time"

	"spotgate/logger"
)

// Metric is one structured measurement emitted by a gateway component.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

type MetricHandler func(Metric)

// MetricHandlerID is returned by RegisterMetricHandler; zero is never issued.
type MetricHandlerID uint64

type registeredHandler struct {
	id MetricHandlerID
	fn MetricHandler
}

// handlers are kept in registration order and replaced copy-on-write, so
// dispatch reads a snapshot without holding the lock while handlers run.
var registry struct {
	mu       sync.Mutex
	lastID   MetricHandlerID
	handlers []registeredHandler
}

func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.lastID++
	next := make([]registeredHandler, len(registry.handlers), len(registry.handlers)+1)
	copy(next, registry.handlers)
	registry.handlers = append(next, registeredHandler{id: registry.lastID, fn: handler})
	return registry.lastID
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()

	next := make([]registeredHandler, 0, len(registry.handlers))
	for _, h := range registry.handlers {
		if h.id != id {
			next = append(next, h)
		}
	}
	registry.handlers = next
}

func snapshotHandlers() []registeredHandler {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.handlers
}

// recordMetric logs the metric at debug level and hands it to every handler.
// Disabled or unnamed metrics are ignored.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" || !metricEnabled(name) {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	metric := Metric{
		Timestamp: timeNow(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    cloneFields(fields),
	}

	logFields := cloneFields(metric.Fields)
	logFields["metric"] = name
	logFields["metric_type"] = metricType
	logFields["value"] = value
	log.WithComponent(component).WithFields(logFields).Debug("metric")

	dispatchMetric(metric)
	return metric, true
}

func dispatchMetric(metric Metric) {
	for _, h := range snapshotHandlers() {
		h.fn(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields)+3)
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}

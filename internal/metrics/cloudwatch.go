package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"spotgate/config"
	"spotgate/logger"
)

const (
	defaultNamespace = "SpotGate"
	defaultDashboard = "SpotGate"
)

type cloudWatchState struct {
	client        *cloudwatch.Client
	namespace     string
	dashboardName string
	region        string
}

var cwState atomic.Pointer[cloudWatchState]

var (
	// cloudWatchPublishInterval bounds how often one metric series is sent.
	cloudWatchPublishInterval = 10 * time.Second
	timeNow                   = time.Now
	publishMetricsFunc        = publishMetrics

	lastPublishMu sync.Mutex
	lastPublish   = make(map[string]time.Time)
)

func init() {
	cwState.Store(&cloudWatchState{
		namespace:     defaultNamespace,
		dashboardName: defaultDashboard,
	})
}

// InitCloudWatch creates the CloudWatch client and the gateway dashboard. A
// disabled configuration leaves publishing off. Failures to load AWS
// configuration are returned; dashboard failures are only logged.
func InitCloudWatch(ctx context.Context, cfg config.CloudWatchConfig) error {
	if !cfg.Enabled {
		return nil
	}
	log := logger.GetLogger().WithComponent("cloudwatch")

	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS configuration: %w", err)
	}

	state := cloudWatchState{namespace: defaultNamespace, dashboardName: defaultDashboard}
	state.client = cloudwatch.NewFromConfig(awsCfg)
	if cfg.Namespace != "" {
		state.namespace = cfg.Namespace
	}
	if cfg.Dashboard != "" {
		state.dashboardName = cfg.Dashboard
	}
	state.region = awsCfg.Region
	if state.region == "" {
		state.region = region
	}

	cwState.Store(&state)

	log.WithFields(logger.Fields{
		"region":    state.region,
		"namespace": state.namespace,
	}).Info("initialized CloudWatch client")

	if err := CreateDashboard(ctx); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
	return nil
}

// EmitMetric logs the metric locally, hands it to registered handlers and
// publishes it to CloudWatch when configured.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	metricEvent, ok := recordMetric(log, component, metric, value, metricType, fields)
	if !ok {
		return
	}

	numericValue, ok := toFloat64(metricEvent.Value)
	if !ok {
		logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{"metric": metricEvent.Name}).Debug("non-numeric metric value; skipping publish")
		return
	}

	publishMetricDatum(metricEvent, numericValue)
}

// dashboardBody renders one widget per gateway metric family.
func dashboardBody(namespace, region string) (string, error) {
	type widget struct {
		Type       string                 `json:"type"`
		X          int                    `json:"x"`
		Y          int                    `json:"y"`
		Width      int                    `json:"width"`
		Height     int                    `json:"height"`
		Properties map[string]interface{} `json:"properties"`
	}

	panels := []struct {
		title     string
		component string
		metric    string
		stat      string
	}{
		{"REST used weight (1m)", "rest", "used_weight", "Maximum"},
		{"Order latency (ms)", "rest", "order_latency_ms", "p99"},
		{"Venue rejections", "rest", "venue_errors", "Sum"},
		{"Stream frames dropped", "stream", "stream_frames_dropped", "Sum"},
		{"Event channel drops", "channel_drops", "stream_events_dropped", "Sum"},
		{"Klines archived", "writer", "klines_archived", "Sum"},
	}

	widgets := make([]widget, 0, len(panels))
	for i, p := range panels {
		widgets = append(widgets, widget{
			Type:   "metric",
			X:      (i % 2) * 12,
			Y:      (i / 2) * 6,
			Width:  12,
			Height: 6,
			Properties: map[string]interface{}{
				"title":   p.title,
				"region":  region,
				"stat":    p.stat,
				"period":  60,
				"view":    "timeSeries",
				"metrics": [][]string{{namespace, p.metric, "component", p.component}},
			},
		})
	}

	body, err := json.Marshal(map[string]interface{}{"widgets": widgets})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// CreateDashboard creates or replaces the configured CloudWatch dashboard.
func CreateDashboard(ctx context.Context) error {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return nil
	}

	body, err := dashboardBody(state.namespace, state.region)
	if err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}

	_, err = state.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(state.dashboardName),
		DashboardBody: aws.String(body),
	})
	if err != nil {
		return err
	}

	logger.GetLogger().WithComponent("cloudwatch").Debug("updated CloudWatch dashboard")
	return nil
}

func publishMetricDatum(metric Metric, value float64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	unit := cwtypes.StandardUnitCount
	if rawUnit, ok := metric.Fields["unit"]; ok {
		if unitStr, ok := rawUnit.(string); ok {
			if parsedUnit, found := metricUnitFromString(unitStr); found {
				unit = parsedUnit
			} else {
				logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{"metric": metric.Name, "unit": unitStr}).Debug("unsupported metric unit; defaulting to Count")
			}
		}
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(metric.Component)}}
	keys := make([]string, 0, len(metric.Fields))
	for k := range metric.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "metric" || k == "metric_type" || k == "value" || k == "unit" {
			continue
		}
		if s, ok := metric.Fields[k].(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	if !shouldPublish(seriesKey(metric.Name, dims)) {
		return
	}

	ts := metric.Timestamp
	if ts.IsZero() {
		ts = timeNow()
	}
	data := []cwtypes.MetricDatum{{
		MetricName: aws.String(metric.Name),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(value),
		Timestamp:  aws.Time(ts),
	}}
	publishMetricsFunc(context.Background(), state, data)
}

func seriesKey(name string, dims []cwtypes.Dimension) string {
	var b strings.Builder
	b.WriteString(name)
	for _, d := range dims {
		b.WriteByte('|')
		b.WriteString(aws.ToString(d.Name))
		b.WriteByte('=')
		b.WriteString(aws.ToString(d.Value))
	}
	return b.String()
}

func shouldPublish(key string) bool {
	now := timeNow()
	lastPublishMu.Lock()
	defer lastPublishMu.Unlock()
	if last, ok := lastPublish[key]; ok && now.Sub(last) < cloudWatchPublishInterval {
		return false
	}
	lastPublish[key] = now
	return true
}

func resetMetricPublishTimes() {
	lastPublishMu.Lock()
	lastPublish = make(map[string]time.Time)
	lastPublishMu.Unlock()
}

func publishMetrics(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
	if state == nil || state.client == nil {
		return
	}
	if len(data) == 0 {
		logger.GetLogger().WithComponent("cloudwatch").Debug("no metric data to publish")
		return
	}

	if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		logger.GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}

	logger.GetLogger().WithComponent("cloudwatch").WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return float64(v) / float64(time.Millisecond), true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "percent":
		return cwtypes.StandardUnitPercent, true
	case "ms", "milliseconds":
		return cwtypes.StandardUnitMilliseconds, true
	case "bytes":
		return cwtypes.StandardUnitBytes, true
	default:
		return cwtypes.StandardUnitCount, false
	}
}

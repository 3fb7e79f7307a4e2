package binancemetrics

import (
	"net/http"
	"testing"
	"time"

	"spotgate/internal/metrics"
	"spotgate/logger"
)

func collect(t *testing.T) chan metrics.Metric {
	t.Helper()
	events := make(chan metrics.Metric, 8)
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) { events <- m })
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })
	return events
}

func TestReportUsedWeightPrefersOneMinuteWindow(t *testing.T) {
	events := collect(t)

	header := http.Header{}
	header.Set("X-MBX-USED-WEIGHT-1S", "3")
	header.Set("X-MBX-USED-WEIGHT-1M", "123.5")

	weight, reported := ReportUsedWeight(logger.GetLogger(), header, "rest", "/v3/account")
	if !reported {
		t.Fatalf("expected metric to be reported")
	}
	if weight != 123.5 {
		t.Fatalf("unexpected weight: %v", weight)
	}

	windows := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case event := <-events:
			if event.Name != "used_weight" {
				t.Fatalf("unexpected metric %s", event.Name)
			}
			if event.Fields["endpoint"] != "/v3/account" {
				t.Fatalf("unexpected fields %v", event.Fields)
			}
			windows[event.Fields["window"].(string)] = true
		case <-time.After(50 * time.Millisecond):
			t.Fatal("expected metric event to be emitted")
		}
	}
	if !windows["1m"] || !windows["1s"] {
		t.Fatalf("expected both windows, got %v", windows)
	}
}

func TestReportUsedWeightLegacyHeader(t *testing.T) {
	header := http.Header{}
	header.Set("X-MBX-USED-WEIGHT", "40")

	weight, reported := ReportUsedWeight(nil, header, "rest", "/v3/ping")
	if !reported || weight != 40 {
		t.Fatalf("expected legacy header to be read, got %v %v", weight, reported)
	}
}

func TestReportUsedWeightInvalid(t *testing.T) {
	events := collect(t)

	header := http.Header{}
	header.Set("X-MBX-USED-WEIGHT-1M", "not-a-number")

	if _, reported := ReportUsedWeight(logger.GetLogger(), header, "rest", "/v3/order"); reported {
		t.Fatalf("expected no metric to be reported for invalid header")
	}

	select {
	case <-events:
		t.Fatal("did not expect metric emission for invalid header")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestReportUsedWeightNoHeaders(t *testing.T) {
	if _, reported := ReportUsedWeight(nil, nil, "rest", "/v3/order"); reported {
		t.Fatal("nil header must not report")
	}
	if _, reported := ReportUsedWeight(nil, http.Header{}, "rest", "/v3/order"); reported {
		t.Fatal("empty header must not report")
	}
}

func TestReportOrderCount(t *testing.T) {
	events := collect(t)

	header := http.Header{}
	header.Set("X-MBX-ORDER-COUNT-10S", "2")
	header.Set("X-MBX-ORDER-COUNT-1D", "17")
	header.Set("X-MBX-USED-WEIGHT-1M", "5")

	if n := ReportOrderCount(nil, header, "rest", "BTCUSDT"); n != 2 {
		t.Fatalf("expected 2 order count metrics, got %d", n)
	}
	for i := 0; i < 2; i++ {
		select {
		case event := <-events:
			if event.Name != "order_count" || event.Fields["symbol"] != "BTCUSDT" {
				t.Fatalf("unexpected metric %+v", event)
			}
		case <-time.After(50 * time.Millisecond):
			t.Fatal("order count metric missing")
		}
	}
}

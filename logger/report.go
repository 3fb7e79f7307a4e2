package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	warnsTotal      int64
	errorsTotal     int64
	ordersSent      int64
	venueRejections int64
	transportErrors int64
	streamFrames    int64
	streamBytes     int64
	framesDropped   int64
	klinesArchived  int64
)

// ReportStats is a point-in-time copy of the runtime counters.
type ReportStats struct {
	Warns           int64
	Errors          int64
	OrdersSent      int64
	VenueRejections int64
	TransportErrors int64
	StreamFrames    int64
	StreamBytes     int64
	FramesDropped   int64
	KlinesArchived  int64
}

func recordWarn()  { atomic.AddInt64(&warnsTotal, 1) }
func recordError() { atomic.AddInt64(&errorsTotal, 1) }

func IncrementOrdersSent() { atomic.AddInt64(&ordersSent, 1) }
func IncrementVenueRejection() { atomic.AddInt64(&venueRejections, 1) }
func IncrementTransportError() { atomic.AddInt64(&transportErrors, 1) }
func IncrementFramesDropped() { atomic.AddInt64(&framesDropped, 1) }
func IncrementKlinesArchived() { atomic.AddInt64(&klinesArchived, 1) }

// IncrementStreamFrame counts one inbound websocket frame of size bytes.
func IncrementStreamFrame(size int) {
	atomic.AddInt64(&streamFrames, 1)
	atomic.AddInt64(&streamBytes, int64(size))
}

// Stats returns the current counter values.
func Stats() ReportStats {
	return ReportStats{
		Warns:           atomic.LoadInt64(&warnsTotal),
		Errors:          atomic.LoadInt64(&errorsTotal),
		OrdersSent:      atomic.LoadInt64(&ordersSent),
		VenueRejections: atomic.LoadInt64(&venueRejections),
		TransportErrors: atomic.LoadInt64(&transportErrors),
		StreamFrames:    atomic.LoadInt64(&streamFrames),
		StreamBytes:     atomic.LoadInt64(&streamBytes),
		FramesDropped:   atomic.LoadInt64(&framesDropped),
		KlinesArchived:  atomic.LoadInt64(&klinesArchived),
	}
}

// StartReport logs the runtime counters and host usage every interval until ctx
// is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memoryMB := int64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		memoryMB = int64(vm.Used) / 1024 / 1024
	}

	s := Stats()
	log.WithComponent("report").WithFields(Fields{
		"warns":            s.Warns,
		"errors":           s.Errors,
		"orders_sent":      s.OrdersSent,
		"venue_rejections": s.VenueRejections,
		"transport_errors": s.TransportErrors,
		"stream_frames":    s.StreamFrames,
		"stream_bytes":     s.StreamBytes,
		"frames_dropped":   s.FramesDropped,
		"klines_archived":  s.KlinesArchived,
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        memoryMB,
	}).Info("runtime report")
}

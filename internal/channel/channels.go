package channel

import (
	"context"
	"sync"

	"spotgate/internal/metrics"
	"spotgate/logger"
	"spotgate/stream"
)

type ChannelStats struct {
	MarketSent    int64
	UserSent      int64
	MarketDropped int64
	UserDropped   int64
}

// Channels decouples the stream read goroutines from consumers. Sends never
// block: a full buffer drops the event so the websocket keeps draining.
type Channels struct {
	Market chan stream.Event
	User   chan stream.UserEvent

	stats      ChannelStats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func NewChannels(marketBufferSize, userBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Market: make(chan stream.Event, marketBufferSize),
		User:   make(chan stream.UserEvent, userBufferSize),
		log:    log,
	}

	log.WithComponent("event_channels").WithFields(logger.Fields{
		"market_buffer_size": marketBufferSize,
		"user_buffer_size":   userBufferSize,
	}).Info("event channels initialized")

	return c
}

// Close must only be called once every producer has returned.
func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Market)
		close(c.User)
		c.log.WithComponent("event_channels").Info("event channels closed")
	})
}

func (c *Channels) SendMarket(ctx context.Context, ev stream.Event) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case c.Market <- ev:
		c.statsMutex.Lock()
		c.stats.MarketSent++
		c.statsMutex.Unlock()
		return true
	default:
		c.statsMutex.Lock()
		c.stats.MarketDropped++
		c.statsMutex.Unlock()
		metrics.EmitDropMetric(c.log, metrics.DropMetricEventChannel, ev.Symbol(), string(ev.Type()), "buffer_full")
		return false
	}
}

func (c *Channels) SendUser(ctx context.Context, ev stream.UserEvent) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case c.User <- ev:
		c.statsMutex.Lock()
		c.stats.UserSent++
		c.statsMutex.Unlock()
		return true
	default:
		c.statsMutex.Lock()
		c.stats.UserDropped++
		c.statsMutex.Unlock()
		metrics.EmitDropMetric(c.log, metrics.DropMetricEventChannel, "", ev.Type, "buffer_full")
		return false
	}
}

// MarketHandler adapts SendMarket to a stream.Handler.
func (c *Channels) MarketHandler(ctx context.Context) stream.Handler {
	return func(ev stream.Event) { c.SendMarket(ctx, ev) }
}

func (c *Channels) UserHandler(ctx context.Context) stream.UserHandler {
	return func(ev stream.UserEvent) { c.SendUser(ctx, ev) }
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

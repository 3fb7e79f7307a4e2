package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"spotgate/apierr"
	"spotgate/internal/metrics"
	"spotgate/logger"

	"github.com/gorilla/websocket"
)

// State is the lifecycle of one connection. A connection never goes back to
// Disconnected; callers build a new listener to reconnect.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateDispatching
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDispatching:
		return "dispatching"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrAlreadyStarted is returned by Listen on a listener that has been used.
var ErrAlreadyStarted = errors.New("stream listener already started")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultControlTimeout   = 5 * time.Second
)

// Option configures a Multiplexer or UserDataStream.
type Option func(*listener)

// WithDialer replaces the websocket dialer. LocalIP and handshake options
// applied after it still take effect.
func WithDialer(d *websocket.Dialer) Option {
	return func(l *listener) {
		if d != nil {
			copied := *d
			l.dialer = &copied
		}
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(l *listener) {
		if d > 0 {
			l.dialer.HandshakeTimeout = d
		}
	}
}

// WithLocalIP binds outgoing connections to ip. Invalid addresses are ignored.
func WithLocalIP(ip string) Option {
	return func(l *listener) {
		if parsed := net.ParseIP(ip); parsed != nil {
			l.dialer.NetDialContext = (&net.Dialer{LocalAddr: &net.TCPAddr{IP: parsed}}).DialContext
		}
	}
}

// WithControlTimeout bounds pong and close frame writes.
func WithControlTimeout(d time.Duration) Option {
	return func(l *listener) {
		if d > 0 {
			l.controlTimeout = d
		}
	}
}

func WithLogger(log *logger.Log) Option {
	return func(l *listener) {
		if log != nil {
			l.log = log
		}
	}
}

// listener owns one websocket connection: dial, control frames, the read
// loop and shutdown. Text frames are handed to onText on the read goroutine.
type listener struct {
	url            string
	component      string
	dialer         *websocket.Dialer
	controlTimeout time.Duration
	log            *logger.Log
	state          atomic.Int32
	onText         func(data []byte)
}

func newListener(url, component string, opts []Option) *listener {
	l := &listener{
		url:            url,
		component:      component,
		dialer:         &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, Proxy: websocket.DefaultDialer.Proxy},
		controlTimeout: defaultControlTimeout,
		log:            logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *listener) State() State { return State(l.state.Load()) }

func (l *listener) entry() *logger.Entry {
	return l.log.WithComponent(l.component).WithField("url", l.url)
}

// listen blocks until the peer closes (nil), ctx is cancelled (ctx.Err()) or
// the transport fails (*apierr.TransportError).
func (l *listener) listen(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}
	log := l.entry()

	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		l.state.Store(int32(StateClosed))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.IncrementTransportError()
		log.WithError(err).Warn("failed to connect to stream")
		return &apierr.TransportError{Op: "dial", URL: l.url, Err: err}
	}
	defer conn.Close()

	conn.SetPingHandler(func(payload string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(l.controlTimeout)); err != nil {
			log.WithError(err).Warn("failed to answer ping")
		}
		return nil
	})
	conn.SetPongHandler(func(payload string) error {
		log.WithField("payload", payload).Debug("pong received")
		return nil
	})
	conn.SetCloseHandler(func(code int, text string) error {
		log.WithFields(logger.Fields{"code": code, "reason": text}).Info("stream closed by peer")
		msg := websocket.FormatCloseMessage(code, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(l.controlTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(l.controlTimeout))
			conn.Close()
		case <-done:
		}
	}()

	l.state.Store(int32(StateSubscribed))
	log.Info("stream connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			l.state.Store(int32(StateClosed))
			if ctx.Err() != nil {
				log.Info("stream stopped")
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				return nil
			}
			logger.IncrementTransportError()
			log.WithError(err).Warn("stream read failed")
			return &apierr.TransportError{Op: "read", URL: l.url, Err: err}
		}

		if msgType != websocket.TextMessage {
			l.drop("", "", "binary_frame")
			continue
		}

		logger.IncrementStreamFrame(len(data))
		l.state.Store(int32(StateDispatching))
		l.onText(data)
		l.state.Store(int32(StateSubscribed))
	}
}

func (l *listener) drop(symbol, streamType, reason string) {
	logger.IncrementFramesDropped()
	metrics.EmitDropMetric(l.log, metrics.DropMetricStreamFrame, symbol, streamType, reason)
}

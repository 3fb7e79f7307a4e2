package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"spotgate/apierr"
	"spotgate/logger"
	"spotgate/models"
)

// Multiplexer reads a combined stream ({base}?streams=a/b/c) and hands each
// decoded frame to a Handler in arrival order. It does not reconnect.
type Multiplexer struct {
	*listener
	specs   []Spec
	handler Handler
}

// New validates specs and builds the combined-stream URL. Nothing is dialled
// until Listen.
func New(streamBase string, specs []Spec, handler Handler, opts ...Option) (*Multiplexer, error) {
	if strings.TrimSpace(streamBase) == "" {
		return nil, apierr.Invalid("stream_base", "is required")
	}
	if handler == nil {
		return nil, apierr.Invalid("handler", "is required")
	}
	if len(specs) == 0 {
		return nil, apierr.Invalid("streams", "at least one stream is required")
	}

	names := make([]string, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	kept := make([]Spec, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		name := spec.Name()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
		kept = append(kept, spec)
	}

	url := strings.TrimRight(streamBase, "/") + "?streams=" + strings.Join(names, "/")
	m := &Multiplexer{specs: kept, handler: handler}
	m.listener = newListener(url, "stream_multiplexer", opts)
	m.listener.onText = m.dispatch
	return m, nil
}

// URL is the combined-stream URL Listen dials.
func (m *Multiplexer) URL() string { return m.url }

// Streams returns the de-duplicated subscription list.
func (m *Multiplexer) Streams() []Spec {
	out := make([]Spec, len(m.specs))
	copy(out, m.specs)
	return out
}

// Listen connects and dispatches until the peer closes the stream (nil), ctx
// is cancelled (ctx.Err()) or the connection fails (*apierr.TransportError).
// A Multiplexer can be listened on once.
func (m *Multiplexer) Listen(ctx context.Context) error {
	return m.listen(ctx)
}

func (m *Multiplexer) dispatch(data []byte) {
	var env models.StreamEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Stream == "" {
		m.entry().WithError(err).Debug("dropping frame without stream envelope")
		m.drop("", "", "envelope")
		return
	}

	spec, err := ParseStreamName(env.Stream)
	if err != nil {
		m.entry().WithError(err).Debug("dropping frame with unparseable stream name")
		m.drop("", "", "stream_name")
		return
	}

	payload, err := decodePayload(spec, env.Data)
	if err != nil {
		reason := dropReason(err)
		m.entry().WithError(err).WithFields(logger.Fields{
			"stream": env.Stream,
			"reason": reason,
		}).Debug("dropping undecodable frame")
		m.drop(spec.Symbol, string(spec.Type), reason)
		return
	}

	m.handler(Event{Stream: spec, Payload: payload, Received: time.Now().UTC()})
}

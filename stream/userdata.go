package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"spotgate/apierr"
	"spotgate/models"
)

// UserEvent is one account update. Payload is *models.ExecutionReport,
// *models.OutboundAccountPosition, *models.BalanceUpdate or, for
// listenKeyExpired, *models.UserEventHeader.
type UserEvent struct {
	Type     string
	Time     int64
	Payload  interface{}
	Received time.Time
}

type UserHandler func(UserEvent)

// UserDataStream reads the raw (non-combined) user data stream at
// {wsBase}/{listenKey}. Keeping the listen key alive is the caller's job.
type UserDataStream struct {
	*listener
	handler UserHandler
}

func NewUserDataStream(wsBase, listenKey string, handler UserHandler, opts ...Option) (*UserDataStream, error) {
	if strings.TrimSpace(wsBase) == "" {
		return nil, apierr.Invalid("ws_base", "is required")
	}
	if strings.TrimSpace(listenKey) == "" {
		return nil, apierr.Invalid("listenKey", "is required")
	}
	if handler == nil {
		return nil, apierr.Invalid("handler", "is required")
	}
	u := &UserDataStream{handler: handler}
	u.listener = newListener(strings.TrimRight(wsBase, "/")+"/"+listenKey, "user_data_stream", opts)
	u.listener.onText = u.dispatch
	return u, nil
}

// Listen has the same return contract as Multiplexer.Listen.
func (u *UserDataStream) Listen(ctx context.Context) error {
	return u.listen(ctx)
}

func (u *UserDataStream) dispatch(data []byte) {
	var header models.UserEventHeader
	if err := json.Unmarshal(data, &header); err != nil || header.EventType == "" {
		u.entry().WithError(err).Debug("dropping user data frame without event type")
		u.drop("", "", "envelope")
		return
	}

	var payload interface{}
	var err error
	switch header.EventType {
	case models.UserEventExecutionReport:
		var ev models.ExecutionReport
		payload, err = decodeInto(data, &ev)
	case models.UserEventAccountPosition:
		var ev models.OutboundAccountPosition
		payload, err = decodeInto(data, &ev)
	case models.UserEventBalanceUpdate:
		var ev models.BalanceUpdate
		payload, err = decodeInto(data, &ev)
	case models.UserEventListenKeyExpired:
		u.entry().Warn("listen key expired")
		payload = &header
	default:
		u.entry().WithField("event", header.EventType).Debug("dropping unknown user data event")
		u.drop("", header.EventType, "unknown_type")
		return
	}
	if err != nil {
		u.entry().WithError(err).WithField("event", header.EventType).Debug("dropping undecodable user data event")
		u.drop("", header.EventType, "payload")
		return
	}

	u.handler(UserEvent{Type: header.EventType, Time: header.EventTime, Payload: payload, Received: time.Now().UTC()})
}

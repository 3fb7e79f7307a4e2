package writer

import (
	"context"
	"errors"

	"spotgate/models"
)

// KlineSink archives kline updates. Implementations must tolerate the same
// (symbol, interval, start time) arriving many times while a candle is open.
type KlineSink interface {
	SaveKline(ctx context.Context, rec models.KlineRecord) error
}

// MultiSink fans a record out to every sink and joins their errors.
type MultiSink []KlineSink

func (m MultiSink) SaveKline(ctx context.Context, rec models.KlineRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.SaveKline(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

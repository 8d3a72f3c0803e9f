package service

import (
	"context"

	"github.com/rs/zerolog"
)

// batchOutcome summarizes a degraded batch write: how many records landed
// and which individual records failed.
type batchOutcome struct {
	Applied int
	Failed  int
	Errors  []error
}

// applyBatch writes items through batchFn in one shot. If the batch write
// fails it degrades to per-item writes so a single malformed record does
// not sacrifice the rest; per-item failures are logged and collected, never
// propagated.
func applyBatch[T any](ctx context.Context, logger zerolog.Logger, unit string, items []T, batchFn func(context.Context, []T) error, itemFn func(context.Context, T) error) batchOutcome {
	if len(items) == 0 {
		return batchOutcome{}
	}

	if err := batchFn(ctx, items); err == nil {
		return batchOutcome{Applied: len(items)}
	} else {
		logger.Warn().Err(err).Str("unit", unit).Int("count", len(items)).
			Msg("batch create failed, retrying records individually")
	}

	outcome := batchOutcome{}
	for _, item := range items {
		if err := itemFn(ctx, item); err != nil {
			logger.Error().Err(err).Str("unit", unit).Msg("record create failed, skipping")
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, err)
			continue
		}
		outcome.Applied++
	}
	return outcome
}

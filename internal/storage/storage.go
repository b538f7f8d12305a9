package storage

import (
	"context"
	"errors"

	"bloomCache/internal/model"
)

// Storage is a sink for refresher output. Implementations must be safe for
// concurrent use: outcomes arrive from overlapping block pipelines.
type Storage interface {
	PutOutcome(ctx context.Context, outcome model.BlockOutcome) error
	PutSnapshot(ctx context.Context, snapshot model.Effectiveness) error
	PutPairs(ctx context.Context, pairs []model.PairRecord) error
}

// Multi writes to every storage in order and joins their errors.
type Multi []Storage

func (m Multi) PutOutcome(ctx context.Context, outcome model.BlockOutcome) error {
	var errs []error
	for _, s := range m {
		if err := s.PutOutcome(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutSnapshot(ctx context.Context, snapshot model.Effectiveness) error {
	var errs []error
	for _, s := range m {
		if err := s.PutSnapshot(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutPairs(ctx context.Context, pairs []model.PairRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.PutPairs(ctx, pairs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

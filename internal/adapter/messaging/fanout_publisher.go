package messaging

import (
	"context"
	"errors"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"
)

// FanoutPublisher hands every event to each sink. A failing sink does not
// stop the others; the errors are joined.
type FanoutPublisher struct {
	sinks []interfaces.IOrderEventPublisher
}

var _ interfaces.IOrderEventPublisher = (*FanoutPublisher)(nil)

func NewFanoutPublisher(sinks ...interfaces.IOrderEventPublisher) *FanoutPublisher {
	kept := make([]interfaces.IOrderEventPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutPublisher{sinks: kept}
}

func (f *FanoutPublisher) Publish(ctx context.Context, ev entities.OrderEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

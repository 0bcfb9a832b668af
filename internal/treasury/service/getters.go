package service

import (
	"context"
	"errors"

	apperrors "github.com/finialabs/outlay/internal/errors"
	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/filter"
)

const defaultEventLimit = 100

// GetStream returns the stream recorded for handle, active or not.
func (s *Service) GetStream(ctx context.Context, handle string) (domain.Stream, error) {
	normalized, err := identity.NormalizeHandle(handle)
	if err != nil {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeInvalidHandle,
			"handle is malformed", map[string]string{"handle": handle})
	}
	stream, err := s.store.GetStream(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeStreamNotFound,
			"no stream exists for handle", map[string]string{"handle": normalized})
	}
	if err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "load stream", err)
	}
	return stream, nil
}

// GetSchedule returns the schedule recorded for handle, active or not.
func (s *Service) GetSchedule(ctx context.Context, handle string) (domain.Schedule, error) {
	normalized, err := identity.NormalizeHandle(handle)
	if err != nil {
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeInvalidHandle,
			"handle is malformed", map[string]string{"handle": handle})
	}
	schedule, err := s.store.GetSchedule(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeScheduleNotFound,
			"no schedule exists for handle", map[string]string{"handle": normalized})
	}
	if err != nil {
		return domain.Schedule{}, apperrors.Wrap(apperrors.CodeInternal, "load schedule", err)
	}
	return schedule, nil
}

// ListEvents returns journal events newest first, optionally narrowed by an
// AIP-160 filter expression over handle, asset, type, and ts. A non-positive
// limit applies the default page size.
func (s *Service) ListEvents(ctx context.Context, filterStr string, limit int) ([]event.Event, error) {
	condition, err := filter.ParseEventFilter(filterStr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidFilter, "parse event filter", err)
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	events, err := s.store.ListEvents(ctx, condition, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list events", err)
	}
	return events, nil
}

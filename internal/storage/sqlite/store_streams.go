package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/shopspring/decimal"
)

// PutStream implements storage.StreamStore.
func (s *Store) PutStream(ctx context.Context, stream domain.Stream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	stream.Handle = strings.TrimSpace(stream.Handle)
	if stream.Handle == "" {
		return fmt.Errorf("stream handle is required")
	}
	if stream.Asset.Code == "" {
		return fmt.Errorf("stream asset is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO streams (
	handle,
	asset,
	asset_decimals,
	rate_per_second,
	end_time,
	active,
	bound_address,
	last_payout,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(handle) DO UPDATE SET
	asset = excluded.asset,
	asset_decimals = excluded.asset_decimals,
	rate_per_second = excluded.rate_per_second,
	end_time = excluded.end_time,
	active = excluded.active,
	bound_address = excluded.bound_address,
	last_payout = excluded.last_payout,
	updated_at = excluded.updated_at
`,
		stream.Handle,
		stream.Asset.Code,
		stream.Asset.Decimals,
		stream.RatePerSecond.String(),
		timeToMs(stream.EndTime),
		boolToInt(stream.Active),
		stream.BoundAddress,
		timeToMs(stream.LastPayout),
		timeToMs(stream.CreatedAt),
		timeToMs(stream.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put stream: %w", err)
	}
	return nil
}

// GetStream implements storage.StreamStore.
func (s *Store) GetStream(ctx context.Context, handle string) (domain.Stream, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stream{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Stream{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT handle, asset, asset_decimals, rate_per_second, end_time, active,
       bound_address, last_payout, created_at, updated_at
FROM streams
WHERE handle = ?
`, strings.TrimSpace(handle))

	var (
		stream     domain.Stream
		rateStr    string
		endTime    int64
		active     int
		lastPayout int64
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&stream.Handle,
		&stream.Asset.Code,
		&stream.Asset.Decimals,
		&rateStr,
		&endTime,
		&active,
		&stream.BoundAddress,
		&lastPayout,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stream{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Stream{}, fmt.Errorf("get stream: %w", err)
	}

	stream.RatePerSecond, err = decimal.NewFromString(rateStr)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("decode stream rate: %w", err)
	}
	stream.EndTime = msToTime(endTime)
	stream.Active = active != 0
	stream.LastPayout = msToTime(lastPayout)
	stream.CreatedAt = msToTime(createdAt)
	stream.UpdatedAt = msToTime(updatedAt)
	return stream, nil
}

func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/shopspring/decimal"
)

// PutSchedule implements storage.ScheduleStore.
func (s *Store) PutSchedule(ctx context.Context, schedule domain.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	schedule.Handle = strings.TrimSpace(schedule.Handle)
	if schedule.Handle == "" {
		return fmt.Errorf("schedule handle is required")
	}
	if schedule.Asset.Code == "" {
		return fmt.Errorf("schedule asset is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO schedules (
	handle,
	asset,
	asset_decimals,
	amount_per_period,
	interval,
	one_time,
	active,
	first_payment,
	next_payment,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(handle) DO UPDATE SET
	asset = excluded.asset,
	asset_decimals = excluded.asset_decimals,
	amount_per_period = excluded.amount_per_period,
	interval = excluded.interval,
	one_time = excluded.one_time,
	active = excluded.active,
	first_payment = excluded.first_payment,
	next_payment = excluded.next_payment,
	updated_at = excluded.updated_at
`,
		schedule.Handle,
		schedule.Asset.Code,
		schedule.Asset.Decimals,
		schedule.AmountPerPeriod.String(),
		schedule.Interval.String(),
		boolToInt(schedule.OneTime),
		boolToInt(schedule.Active),
		timeToMs(schedule.FirstPayment),
		timeToMs(schedule.NextPayment),
		timeToMs(schedule.CreatedAt),
		timeToMs(schedule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

// GetSchedule implements storage.ScheduleStore.
func (s *Store) GetSchedule(ctx context.Context, handle string) (domain.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return domain.Schedule{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Schedule{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT handle, asset, asset_decimals, amount_per_period, interval, one_time,
       active, first_payment, next_payment, created_at, updated_at
FROM schedules
WHERE handle = ?
`, strings.TrimSpace(handle))

	var (
		schedule     domain.Schedule
		amountStr    string
		intervalStr  string
		oneTime      int
		active       int
		firstPayment int64
		nextPayment  int64
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(
		&schedule.Handle,
		&schedule.Asset.Code,
		&schedule.Asset.Decimals,
		&amountStr,
		&intervalStr,
		&oneTime,
		&active,
		&firstPayment,
		&nextPayment,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("get schedule: %w", err)
	}

	schedule.AmountPerPeriod, err = decimal.NewFromString(amountStr)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("decode schedule amount: %w", err)
	}
	schedule.Interval = domain.ParseInterval(intervalStr)
	schedule.OneTime = oneTime != 0
	schedule.Active = active != 0
	schedule.FirstPayment = msToTime(firstPayment)
	schedule.NextPayment = msToTime(nextPayment)
	schedule.CreatedAt = msToTime(createdAt)
	schedule.UpdatedAt = msToTime(updatedAt)
	return schedule, nil
}

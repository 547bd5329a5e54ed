package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avicare/avicare/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, user_phone, subscription_id, bird_name, appointment_date,
	slot_start_time, slot_end_time, symptoms, status, notes,
	canceled_by, canceled_at, cancellation_reason, credit_restored,
	created_at, updated_at`

func (r *repoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.UserPhone, &a.SubscriptionID, &a.BirdName, &a.AppointmentDate,
		&a.SlotStartTime, &a.SlotEndTime, &a.Symptoms, &a.Status, &a.Notes,
		&a.CanceledBy, &a.CanceledAt, &a.CancellationReason, &a.CreditRestored,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, user_phone, subscription_id, bird_name, appointment_date,
			slot_start_time, slot_end_time, symptoms, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.UserPhone, a.SubscriptionID, a.BirdName, a.AppointmentDate,
		a.SlotStartTime, a.SlotEndTime, a.Symptoms, a.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, notes=$3, canceled_by=$4, canceled_at=$5,
			cancellation_reason=$6, credit_restored=$7, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.Notes, a.CanceledBy, a.CanceledAt,
		a.CancellationReason, a.CreditRestored)
	return err
}

func (r *repoPG) ListByPhone(ctx context.Context, phone string, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE user_phone = $1`, phone).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment WHERE user_phone = $1
		ORDER BY appointment_date DESC, slot_start_time DESC LIMIT $2 OFFSET $3`, phone, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["phone"]; ok {
		query += fmt.Sprintf(` AND user_phone = $%d`, idx)
		countQuery += fmt.Sprintf(` AND user_phone = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["date"]; ok {
		query += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		countQuery += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY appointment_date DESC, slot_start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) ExistsActiveAt(ctx context.Context, date time.Time, slotStart string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE appointment_date = $1 AND slot_start_time = $2 AND status <> $3
		)`, date, slotStart, StatusCanceled).Scan(&exists)
	return exists, err
}

func (r *repoPG) BookedStartTimes(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT slot_start_time FROM appointment
		WHERE appointment_date = $1 AND status <> $2`, date, StatusCanceled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

// =========== Settings Repository ===========

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) SettingsRepository { return &settingsRepoPG{pool: pool} }

func (r *settingsRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *settingsRepoPG) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT slot_duration_minutes, buffer_minutes, start_time, end_time,
			timezone, max_advance_booking_days, updated_at
		FROM appointment_settings WHERE id = 1`).Scan(
		&s.SlotDurationMinutes, &s.BufferMinutes, &s.StartTime, &s.EndTime,
		&s.Timezone, &s.MaxAdvanceBookingDays, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSettingsMissing
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepoPG) Update(ctx context.Context, s *Settings) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_settings SET slot_duration_minutes=$1, buffer_minutes=$2,
			start_time=$3, end_time=$4, timezone=$5, max_advance_booking_days=$6, updated_at=NOW()
		WHERE id = 1`,
		s.SlotDurationMinutes, s.BufferMinutes, s.StartTime, s.EndTime,
		s.Timezone, s.MaxAdvanceBookingDays)
	return err
}

// =========== BlockedSlot Repository ===========

type blockedRepoPG struct{ pool *pgxpool.Pool }

func NewBlockedSlotRepoPG(pool *pgxpool.Pool) BlockedSlotRepository { return &blockedRepoPG{pool: pool} }

func (r *blockedRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const blockedCols = `id, blocked_date, start_time, end_time, reason, created_by, created_at`

func (r *blockedRepoPG) scanBlocked(row pgx.Row) (*BlockedSlot, error) {
	var b BlockedSlot
	err := row.Scan(&b.ID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedBy, &b.CreatedAt)
	return &b, err
}

func (r *blockedRepoPG) Create(ctx context.Context, b *BlockedSlot) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blocked_slot (id, blocked_date, start_time, end_time, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.Date, b.StartTime, b.EndTime, b.Reason, b.CreatedBy)
	return err
}

func (r *blockedRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM blocked_slot WHERE id = $1`, id)
	return err
}

func (r *blockedRepoPG) ListByDate(ctx context.Context, date time.Time) ([]*BlockedSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+blockedCols+` FROM blocked_slot WHERE blocked_date = $1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BlockedSlot
	for rows.Next() {
		b, err := r.scanBlocked(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, nil
}

func (r *blockedRepoPG) List(ctx context.Context, limit, offset int) ([]*BlockedSlot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blocked_slot`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockedCols+` FROM blocked_slot
		ORDER BY blocked_date DESC, start_time ASC NULLS FIRST LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*BlockedSlot
	for rows.Next() {
		b, err := r.scanBlocked(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, nil
}

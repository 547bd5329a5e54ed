package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/avicare/avicare/internal/domain/subscription"
	"github.com/avicare/avicare/internal/platform/notification"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrAlreadyCanceled   = errors.New("appointment already canceled")
	ErrForbidden         = errors.New("not allowed")
	ErrSettingsMissing   = errors.New("appointment settings not configured")
)

// cancelCutoff is the minimum lead time for a cancellation to restore a
// consultation credit.
const cancelCutoff = 12 * time.Hour

// Ledger is the subscription credit interface the booking flow needs.
// Implemented by subscription.Service.
type Ledger interface {
	ActiveForUpdate(ctx context.Context, phone string) (*subscription.Subscription, error)
	Deduct(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// TxFunc runs fn inside a database transaction propagated through ctx.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	appts    Repository
	settings SettingsRepository
	blocked  BlockedSlotRepository
	ledger   Ledger
	sms      *notification.Manager
	tx       TxFunc
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(appts Repository, settings SettingsRepository, blocked BlockedSlotRepository,
	ledger Ledger, sms *notification.Manager, tx TxFunc, logger zerolog.Logger) *Service {
	return &Service{
		appts:    appts,
		settings: settings,
		blocked:  blocked,
		ledger:   ledger,
		sms:      sms,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func (s *Service) location(st *Settings) *time.Location {
	loc, err := time.LoadLocation(st.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// checkDateWindow rejects dates in the past or beyond the advance-booking
// horizon.
func (s *Service) checkDateWindow(st *Settings, date time.Time) error {
	loc := s.location(st)
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return fmt.Errorf("date is in the past")
	}
	if date.After(today.AddDate(0, 0, st.MaxAdvanceBookingDays)) {
		return fmt.Errorf("date is more than %d days ahead", st.MaxAdvanceBookingDays)
	}
	return nil
}

// AvailableSlots resolves the per-slot availability for a date.
func (s *Service) AvailableSlots(ctx context.Context, dateStr string) (*Availability, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkDateWindow(st, date); err != nil {
		return nil, err
	}

	template := GenerateSlots(st.StartTime, st.EndTime, st.SlotDurationMinutes, st.BufferMinutes)

	bookedTimes, err := s.appts.BookedStartTimes(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}
	booked := make(map[string]bool, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[t] = true
	}

	blocks, err := s.blocked.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load blocked slots: %w", err)
	}
	wholeDay := false
	blockedAt := make(map[string]bool)
	for _, b := range blocks {
		if b.StartTime == nil {
			wholeDay = true
			continue
		}
		blockedAt[*b.StartTime] = true
	}

	slots := make([]SlotStatus, 0, len(template))
	for _, t := range template {
		status := "available"
		switch {
		case booked[t]:
			status = "booked"
		case wholeDay || blockedAt[t]:
			status = "blocked"
		}
		slots = append(slots, SlotStatus{Time: t, Available: status == "available", Status: status})
	}

	return &Availability{Date: dateStr, Slots: slots, Settings: st}, nil
}

// BookingRequest is the input to Book.
type BookingRequest struct {
	AppointmentDate string `json:"appointmentDate"`
	SlotStartTime   string `json:"slotStartTime"`
	SlotEndTime     string `json:"slotEndTime"`
	BirdName        string `json:"birdName"`
	Symptoms        string `json:"symptoms"`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Book creates an appointment. The credit check, slot freshness check,
// blocked-slot check, insert, and credit deduction all run inside one
// transaction; the partial unique index on (date, start time) catches the
// remaining race and maps to ErrSlotAlreadyBooked.
func (s *Service) Book(ctx context.Context, phone string, req BookingRequest) (*Appointment, int, error) {
	date, err := parseDate(req.AppointmentDate)
	if err != nil {
		return nil, 0, err
	}
	startMin, err := parseHHMM(req.SlotStartTime)
	if err != nil {
		return nil, 0, err
	}
	endMin, err := parseHHMM(req.SlotEndTime)
	if err != nil {
		return nil, 0, err
	}
	if endMin <= startMin {
		return nil, 0, fmt.Errorf("slot end must be after slot start")
	}
	if req.BirdName == "" {
		return nil, 0, fmt.Errorf("bird name is required")
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := s.checkDateWindow(st, date); err != nil {
		return nil, 0, err
	}
	onGrid := false
	for _, slot := range GenerateSlots(st.StartTime, st.EndTime, st.SlotDurationMinutes, st.BufferMinutes) {
		if slot == req.SlotStartTime {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return nil, 0, fmt.Errorf("slot %s is not on the schedule", req.SlotStartTime)
	}

	var (
		appt      *Appointment
		remaining int
	)
	err = s.tx(ctx, func(ctx context.Context) error {
		sub, err := s.ledger.ActiveForUpdate(ctx, phone)
		if err != nil {
			return err
		}
		if sub.ConsultationsRemaining <= 0 {
			return subscription.ErrNoCreditsRemaining
		}

		taken, err := s.appts.ExistsActiveAt(ctx, date, req.SlotStartTime)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotAlreadyBooked
		}

		blocks, err := s.blocked.ListByDate(ctx, date)
		if err != nil {
			return fmt.Errorf("check blocked slots: %w", err)
		}
		for _, b := range blocks {
			if b.StartTime == nil || *b.StartTime == req.SlotStartTime {
				return ErrSlotUnavailable
			}
		}

		appt = &Appointment{
			UserPhone:       phone,
			SubscriptionID:  sub.ID,
			BirdName:        req.BirdName,
			AppointmentDate: date,
			SlotStartTime:   req.SlotStartTime,
			SlotEndTime:     req.SlotEndTime,
			Symptoms:        req.Symptoms,
			Status:          StatusBooked,
		}
		if err := s.appts.Create(ctx, appt); err != nil {
			if isUniqueViolation(err) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		if err := s.ledger.Deduct(ctx, sub.ID); err != nil {
			return err
		}
		remaining = sub.ConsultationsRemaining - 1
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// Confirmation SMS is best-effort and never affects the response.
	go func() {
		if _, err := s.sms.SendFromTemplate(context.Background(), "booking-confirmation", map[string]string{
			"date": req.AppointmentDate,
			"time": req.SlotStartTime,
		}, phone); err != nil {
			s.logger.Warn().Err(err).Str("phone", phone).Msg("booking confirmation sms failed")
		}
	}()

	return appt, remaining, nil
}

// slotDateTime combines the appointment date and slot start into a wall-clock
// instant in the configured timezone.
func (s *Service) slotDateTime(ctx context.Context, a *Appointment) time.Time {
	loc := time.UTC
	if st, err := s.settings.Get(ctx); err == nil {
		loc = s.location(st)
	}
	startMin, err := parseHHMM(a.SlotStartTime)
	if err != nil {
		startMin = 0
	}
	d := a.AppointmentDate
	return time.Date(d.Year(), d.Month(), d.Day(), startMin/60, startMin%60, 0, 0, loc)
}

// Cancel marks the appointment canceled. Callers other than the owner need
// admin rights. Cancellations more than 12 hours ahead restore one credit;
// re-cancellation is rejected.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, callerPhone string, isAdmin bool, canceledBy string, reason *string) (bool, error) {
	var (
		restored bool
		canceled *Appointment
	)
	err := s.tx(ctx, func(ctx context.Context) error {
		a, err := s.appts.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !isAdmin && a.UserPhone != callerPhone {
			return ErrForbidden
		}
		if a.Status == StatusCanceled {
			return ErrAlreadyCanceled
		}

		if s.slotDateTime(ctx, a).Sub(s.now()) > cancelCutoff {
			if err := s.ledger.Restore(ctx, a.SubscriptionID); err != nil {
				return fmt.Errorf("restore credit: %w", err)
			}
			restored = true
		}

		now := s.now().UTC()
		a.Status = StatusCanceled
		a.CanceledBy = &canceledBy
		a.CanceledAt = &now
		a.CancellationReason = reason
		a.CreditRestored = restored
		canceled = a
		return s.appts.Update(ctx, a)
	})
	if err != nil {
		return false, err
	}

	go func() {
		creditNote := "No consultation credit was restored."
		if restored {
			creditNote = "Your consultation credit has been restored."
		}
		if _, err := s.sms.SendFromTemplate(context.Background(), "booking-canceled", map[string]string{
			"date":        canceled.AppointmentDate.Format("2006-01-02"),
			"time":        canceled.SlotStartTime,
			"credit_note": creditNote,
		}, canceled.UserPhone); err != nil {
			s.logger.Warn().Err(err).Str("phone", canceled.UserPhone).Msg("cancellation sms failed")
		}
	}()

	return restored, nil
}

// Get returns an appointment, enforcing ownership for non-admin callers.
func (s *Service) Get(ctx context.Context, id uuid.UUID, callerPhone string, isAdmin bool) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.UserPhone != callerPhone {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *Service) ListMine(ctx context.Context, phone string, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByPhone(ctx, phone, limit, offset)
}

func (s *Service) AdminSearch(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.Search(ctx, params, limit, offset)
}

// AdminUpdate rewrites status and/or notes. Only enum validation applies.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, status, notes *string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status != nil {
		if !validStatuses[*status] {
			return nil, fmt.Errorf("invalid status: %s", *status)
		}
		a.Status = *status
	}
	if notes != nil {
		a.Notes = notes
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetSettings returns the singleton settings row.
func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	return s.settings.Get(ctx)
}

// SettingsUpdate carries a partial settings change; nil fields keep their
// current value.
type SettingsUpdate struct {
	SlotDurationMinutes   *int    `json:"slot_duration_minutes"`
	BufferMinutes         *int    `json:"buffer_minutes"`
	StartTime             *string `json:"start_time"`
	EndTime               *string `json:"end_time"`
	Timezone              *string `json:"timezone"`
	MaxAdvanceBookingDays *int    `json:"max_advance_booking_days"`
}

// UpdateSettings applies a partial update with range validation.
func (s *Service) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*Settings, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if upd.SlotDurationMinutes != nil {
		st.SlotDurationMinutes = *upd.SlotDurationMinutes
	}
	if upd.BufferMinutes != nil {
		st.BufferMinutes = *upd.BufferMinutes
	}
	if upd.StartTime != nil {
		st.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		st.EndTime = *upd.EndTime
	}
	if upd.Timezone != nil {
		st.Timezone = *upd.Timezone
	}
	if upd.MaxAdvanceBookingDays != nil {
		st.MaxAdvanceBookingDays = *upd.MaxAdvanceBookingDays
	}

	if st.SlotDurationMinutes < 15 || st.SlotDurationMinutes > 120 {
		return nil, fmt.Errorf("slot duration must be between 15 and 120 minutes")
	}
	if st.BufferMinutes < 0 || st.BufferMinutes > 60 {
		return nil, fmt.Errorf("buffer must be between 0 and 60 minutes")
	}
	if st.MaxAdvanceBookingDays < 1 || st.MaxAdvanceBookingDays > 90 {
		return nil, fmt.Errorf("max advance booking days must be between 1 and 90")
	}
	startMin, err := parseHHMM(st.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := parseHHMM(st.EndTime)
	if err != nil {
		return nil, err
	}
	if endMin <= startMin {
		return nil, fmt.Errorf("end time must be after start time")
	}
	if _, err := time.LoadLocation(st.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone: %s", st.Timezone)
	}

	if err := s.settings.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// CreateBlockedSlot validates and stores a block; nil start blocks the day.
func (s *Service) CreateBlockedSlot(ctx context.Context, dateStr string, startTime, endTime *string, reason string, createdBy uuid.UUID) (*BlockedSlot, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if (startTime == nil) != (endTime == nil) {
		return nil, fmt.Errorf("start and end time must both be set or both be empty")
	}
	if startTime != nil {
		startMin, err := parseHHMM(*startTime)
		if err != nil {
			return nil, err
		}
		endMin, err := parseHHMM(*endTime)
		if err != nil {
			return nil, err
		}
		if endMin <= startMin {
			return nil, fmt.Errorf("end time must be after start time")
		}
	}

	b := &BlockedSlot{
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		Reason:    reason,
		CreatedBy: createdBy,
	}
	if err := s.blocked.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	return s.blocked.Delete(ctx, id)
}

func (s *Service) ListBlockedSlots(ctx context.Context, limit, offset int) ([]*BlockedSlot, int, error) {
	return s.blocked.List(ctx, limit, offset)
}

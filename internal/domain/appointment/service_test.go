package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avicare/avicare/internal/domain/subscription"
	"github.com/avicare/avicare/internal/platform/notification"
)

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockApptRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) ListByPhone(_ context.Context, phone string, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if a.UserPhone == phone {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockApptRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if p, ok := params["phone"]; ok && a.UserPhone != p {
			continue
		}
		if p, ok := params["status"]; ok && a.Status != p {
			continue
		}
		items = append(items, a)
	}
	return items, len(items), nil
}

func (m *mockApptRepo) ExistsActiveAt(_ context.Context, date time.Time, slotStart string) (bool, error) {
	for _, a := range m.appts {
		if a.AppointmentDate.Equal(date) && a.SlotStartTime == slotStart && a.Status != StatusCanceled {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockApptRepo) BookedStartTimes(_ context.Context, date time.Time) ([]string, error) {
	var times []string
	for _, a := range m.appts {
		if a.AppointmentDate.Equal(date) && a.Status != StatusCanceled {
			times = append(times, a.SlotStartTime)
		}
	}
	return times, nil
}

type mockSettingsRepo struct {
	settings *Settings
}

func (m *mockSettingsRepo) Get(_ context.Context) (*Settings, error) {
	if m.settings == nil {
		return nil, ErrSettingsMissing
	}
	cp := *m.settings
	return &cp, nil
}

func (m *mockSettingsRepo) Update(_ context.Context, s *Settings) error {
	m.settings = s
	return nil
}

type mockBlockedRepo struct {
	blocks []*BlockedSlot
}

func (m *mockBlockedRepo) Create(_ context.Context, b *BlockedSlot) error {
	b.ID = uuid.New()
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *mockBlockedRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, b := range m.blocks {
		if b.ID == id {
			m.blocks = append(m.blocks[:i], m.blocks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockBlockedRepo) ListByDate(_ context.Context, date time.Time) ([]*BlockedSlot, error) {
	var items []*BlockedSlot
	for _, b := range m.blocks {
		if b.Date.Equal(date) {
			items = append(items, b)
		}
	}
	return items, nil
}

func (m *mockBlockedRepo) List(_ context.Context, limit, offset int) ([]*BlockedSlot, int, error) {
	return m.blocks, len(m.blocks), nil
}

type mockLedger struct {
	sub      *subscription.Subscription
	deducts  int
	restores int
}

func (m *mockLedger) ActiveForUpdate(_ context.Context, phone string) (*subscription.Subscription, error) {
	if m.sub == nil || m.sub.UserPhone != phone || m.sub.Status != subscription.StatusActive {
		return nil, subscription.ErrNoActiveSubscription
	}
	cp := *m.sub
	return &cp, nil
}

func (m *mockLedger) Deduct(_ context.Context, id uuid.UUID) error {
	if m.sub == nil || m.sub.ID != id {
		return subscription.ErrNotFound
	}
	if m.sub.ConsultationsRemaining <= 0 {
		return subscription.ErrNoCreditsRemaining
	}
	m.sub.ConsultationsRemaining--
	m.deducts++
	return nil
}

func (m *mockLedger) Restore(_ context.Context, id uuid.UUID) error {
	if m.sub == nil || m.sub.ID != id {
		return subscription.ErrNotFound
	}
	m.sub.ConsultationsRemaining++
	m.sub.Status = subscription.StatusActive
	m.restores++
	return nil
}

// testNow anchors the clock so date-window and cutoff checks are stable.
var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	appts    *mockApptRepo
	settings *mockSettingsRepo
	blocked  *mockBlockedRepo
	ledger   *mockLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	appts := newMockApptRepo()
	settings := &mockSettingsRepo{settings: &Settings{
		SlotDurationMinutes:   30,
		BufferMinutes:         0,
		StartTime:             "10:00",
		EndTime:               "18:00",
		Timezone:              "UTC",
		MaxAdvanceBookingDays: 30,
	}}
	blocked := &mockBlockedRepo{}
	ledger := &mockLedger{sub: &subscription.Subscription{
		ID:                     uuid.New(),
		UserPhone:              "+911234567890",
		Plan:                   "monthly",
		Status:                 subscription.StatusActive,
		ConsultationsRemaining: 2,
	}}
	mgr := notification.NewManager(&notification.MockSMSSender{}, notification.NewTemplateEngine())
	passthrough := func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	svc := NewService(appts, settings, blocked, ledger, mgr, passthrough, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, appts: appts, settings: settings, blocked: blocked, ledger: ledger}
}

func validBooking() BookingRequest {
	return BookingRequest{
		AppointmentDate: "2026-03-02",
		SlotStartTime:   "10:00",
		SlotEndTime:     "10:30",
		BirdName:        "Kiwi",
		Symptoms:        "plucking feathers",
	}
}

func TestBook(t *testing.T) {
	f := newFixture(t)

	appt, remaining, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if remaining != 1 {
		t.Errorf("expected 1 remaining consultation, got %d", remaining)
	}
	if appt.Status != StatusBooked {
		t.Errorf("expected booked status, got %s", appt.Status)
	}
	if appt.SubscriptionID != f.ledger.sub.ID {
		t.Errorf("appointment not linked to subscription")
	}
	if f.ledger.deducts != 1 {
		t.Errorf("expected 1 deduction, got %d", f.ledger.deducts)
	}
	if len(f.appts.appts) != 1 {
		t.Errorf("expected 1 appointment row, got %d", len(f.appts.appts))
	}
}

func TestBook_NoSubscription(t *testing.T) {
	f := newFixture(t)
	f.ledger.sub = nil

	_, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if !errors.Is(err, subscription.ErrNoActiveSubscription) {
		t.Errorf("expected ErrNoActiveSubscription, got %v", err)
	}
	if len(f.appts.appts) != 0 {
		t.Error("no appointment should be created without a subscription")
	}
}

func TestBook_NoCreditsRemaining(t *testing.T) {
	f := newFixture(t)
	f.ledger.sub.ConsultationsRemaining = 0

	_, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if !errors.Is(err, subscription.ErrNoCreditsRemaining) {
		t.Errorf("expected ErrNoCreditsRemaining, got %v", err)
	}
	if len(f.appts.appts) != 0 {
		t.Error("no appointment should be created with zero credits")
	}
}

func TestBook_SlotAlreadyBooked(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking()); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Errorf("expected ErrSlotAlreadyBooked, got %v", err)
	}
	if f.ledger.deducts != 1 {
		t.Errorf("duplicate booking must not deduct, got %d deductions", f.ledger.deducts)
	}
	if len(f.appts.appts) != 1 {
		t.Errorf("expected a single appointment row, got %d", len(f.appts.appts))
	}
}

func TestBook_CanceledSlotIsFreed(t *testing.T) {
	f := newFixture(t)

	appt, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), appt.ID, "+911234567890", false, "user", nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking()); err != nil {
		t.Errorf("rebooking a canceled slot should succeed, got %v", err)
	}
}

func TestBook_BlockedSlot(t *testing.T) {
	f := newFixture(t)
	start, end := "10:00", "10:30"
	f.blocked.blocks = append(f.blocked.blocks, &BlockedSlot{
		ID: uuid.New(), Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime: &start, EndTime: &end, Reason: "vet off-site",
	})

	_, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestBook_WholeDayBlock(t *testing.T) {
	f := newFixture(t)
	f.blocked.blocks = append(f.blocked.blocks, &BlockedSlot{
		ID: uuid.New(), Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Reason: "clinic closed",
	})

	_, _, err := f.svc.Book(context.Background(), "+911234567890", validBooking())
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable for whole-day block, got %v", err)
	}
}

func TestBook_DateWindow(t *testing.T) {
	f := newFixture(t)

	req := validBooking()
	req.AppointmentDate = "2026-02-20"
	if _, _, err := f.svc.Book(context.Background(), "+911234567890", req); err == nil {
		t.Error("expected error for past date")
	}

	req.AppointmentDate = "2026-05-01"
	if _, _, err := f.svc.Book(context.Background(), "+911234567890", req); err == nil {
		t.Error("expected error beyond the advance-booking horizon")
	}
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"bad date", func(r *BookingRequest) { r.AppointmentDate = "tomorrow" }},
		{"bad start time", func(r *BookingRequest) { r.SlotStartTime = "25:00" }},
		{"off-grid start time", func(r *BookingRequest) { r.SlotStartTime = "10:07"; r.SlotEndTime = "10:37" }},
		{"end before start", func(r *BookingRequest) { r.SlotEndTime = "09:00" }},
		{"missing bird name", func(r *BookingRequest) { r.BirdName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBooking()
			tt.mutate(&req)
			if _, _, err := f.svc.Book(context.Background(), "+911234567890", req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func seedAppointment(f *fixture, phone, date, start string) *Appointment {
	d, _ := time.Parse("2006-01-02", date)
	a := &Appointment{
		ID:              uuid.New(),
		UserPhone:       phone,
		SubscriptionID:  f.ledger.sub.ID,
		BirdName:        "Kiwi",
		AppointmentDate: d,
		SlotStartTime:   start,
		SlotEndTime:     "10:30",
		Status:          StatusBooked,
	}
	f.appts.appts[a.ID] = a
	return a
}

func TestCancel_RestoresCreditBeforeCutoff(t *testing.T) {
	f := newFixture(t)
	// 2026-03-02 10:00 is 25 hours after the anchored clock.
	a := seedAppointment(f, "+911234567890", "2026-03-02", "10:00")

	restored, err := f.svc.Cancel(context.Background(), a.ID, "+911234567890", false, "user", nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !restored {
		t.Error("expected credit restoration more than 12h out")
	}
	if f.ledger.restores != 1 {
		t.Errorf("expected 1 restore, got %d", f.ledger.restores)
	}
	got := f.appts.appts[a.ID]
	if got.Status != StatusCanceled || !got.CreditRestored || got.CanceledAt == nil {
		t.Errorf("unexpected canceled appointment %+v", got)
	}
	if got.CanceledBy == nil || *got.CanceledBy != "user" {
		t.Errorf("expected canceled_by user, got %v", got.CanceledBy)
	}
}

func TestCancel_NoRestoreWithinCutoff(t *testing.T) {
	f := newFixture(t)
	// 2026-03-01 15:00 is 6 hours after the anchored clock.
	a := seedAppointment(f, "+911234567890", "2026-03-01", "15:00")

	restored, err := f.svc.Cancel(context.Background(), a.ID, "+911234567890", false, "user", nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if restored {
		t.Error("no credit restoration within 12h of the slot")
	}
	if f.ledger.restores != 0 {
		t.Errorf("expected 0 restores, got %d", f.ledger.restores)
	}
	if f.appts.appts[a.ID].Status != StatusCanceled {
		t.Error("appointment should still be canceled")
	}
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, "+911234567890", "2026-03-02", "10:00")

	if _, err := f.svc.Cancel(context.Background(), a.ID, "+911234567890", false, "user", nil); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), a.ID, "+911234567890", false, "user", nil); !errors.Is(err, ErrAlreadyCanceled) {
		t.Errorf("expected ErrAlreadyCanceled, got %v", err)
	}
	if f.ledger.restores != 1 {
		t.Errorf("second cancel must not restore again, got %d restores", f.ledger.restores)
	}
}

func TestCancel_Ownership(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, "+911234567890", "2026-03-02", "10:00")

	if _, err := f.svc.Cancel(context.Background(), a.ID, "+919999999999", false, "user", nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for a stranger, got %v", err)
	}

	// admin may cancel anyone's appointment
	if _, err := f.svc.Cancel(context.Background(), a.ID, "", true, "admin", nil); err != nil {
		t.Errorf("admin cancel: %v", err)
	}
	got := f.appts.appts[a.ID]
	if got.CanceledBy == nil || *got.CanceledBy != "admin" {
		t.Errorf("expected canceled_by admin, got %v", got.CanceledBy)
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Cancel(context.Background(), uuid.New(), "+911234567890", false, "user", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)
	seedAppointment(f, "+911234567890", "2026-03-02", "10:30")
	start, end := "11:00", "11:30"
	f.blocked.blocks = append(f.blocked.blocks, &BlockedSlot{
		ID: uuid.New(), Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime: &start, EndTime: &end, Reason: "lunch",
	})

	avail, err := f.svc.AvailableSlots(context.Background(), "2026-03-02")
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(avail.Slots) != 16 {
		t.Fatalf("expected 16 slots for 10:00-18:00/30min, got %d", len(avail.Slots))
	}

	byTime := make(map[string]SlotStatus)
	for _, s := range avail.Slots {
		byTime[s.Time] = s
	}
	if got := byTime["10:00"]; !got.Available || got.Status != "available" {
		t.Errorf("10:00 should be available, got %+v", got)
	}
	if got := byTime["10:30"]; got.Available || got.Status != "booked" {
		t.Errorf("10:30 should be booked, got %+v", got)
	}
	if got := byTime["11:00"]; got.Available || got.Status != "blocked" {
		t.Errorf("11:00 should be blocked, got %+v", got)
	}
}

func TestAvailableSlots_WholeDayBlock(t *testing.T) {
	f := newFixture(t)
	f.blocked.blocks = append(f.blocked.blocks, &BlockedSlot{
		ID: uuid.New(), Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Reason: "clinic closed",
	})

	avail, err := f.svc.AvailableSlots(context.Background(), "2026-03-02")
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	for _, s := range avail.Slots {
		if s.Available || s.Status != "blocked" {
			t.Fatalf("expected every slot blocked, got %+v", s)
		}
	}
}

func TestAvailableSlots_PastDate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.AvailableSlots(context.Background(), "2026-02-20"); err == nil {
		t.Error("expected error for a past date")
	}
}

func TestAvailableSlots_SettingsMissing(t *testing.T) {
	f := newFixture(t)
	f.settings.settings = nil
	if _, err := f.svc.AvailableSlots(context.Background(), "2026-03-02"); !errors.Is(err, ErrSettingsMissing) {
		t.Errorf("expected ErrSettingsMissing, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	dur := 45
	st, err := f.svc.UpdateSettings(context.Background(), SettingsUpdate{SlotDurationMinutes: &dur})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if st.SlotDurationMinutes != 45 {
		t.Errorf("expected duration 45, got %d", st.SlotDurationMinutes)
	}
	if st.StartTime != "10:00" {
		t.Errorf("untouched fields must survive a partial update, got start %s", st.StartTime)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	f := newFixture(t)
	bad := func(u SettingsUpdate) {
		t.Helper()
		if _, err := f.svc.UpdateSettings(context.Background(), u); err == nil {
			t.Errorf("expected validation error for %+v", u)
		}
	}
	intp := func(v int) *int { return &v }
	strp := func(v string) *string { return &v }

	bad(SettingsUpdate{SlotDurationMinutes: intp(10)})
	bad(SettingsUpdate{SlotDurationMinutes: intp(121)})
	bad(SettingsUpdate{BufferMinutes: intp(-1)})
	bad(SettingsUpdate{BufferMinutes: intp(61)})
	bad(SettingsUpdate{MaxAdvanceBookingDays: intp(0)})
	bad(SettingsUpdate{MaxAdvanceBookingDays: intp(91)})
	bad(SettingsUpdate{StartTime: strp("19:00")}) // after the 18:00 end
	bad(SettingsUpdate{Timezone: strp("Mars/Olympus")})
}

func TestAdminUpdate(t *testing.T) {
	f := newFixture(t)
	a := seedAppointment(f, "+911234567890", "2026-03-02", "10:00")

	status := StatusCompleted
	notes := "bird recovered well"
	got, err := f.svc.AdminUpdate(context.Background(), a.ID, &status, &notes)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if got.Status != StatusCompleted || got.Notes == nil || *got.Notes != notes {
		t.Errorf("unexpected appointment %+v", got)
	}

	invalid := "teleported"
	if _, err := f.svc.AdminUpdate(context.Background(), a.ID, &invalid, nil); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestCreateBlockedSlot_Validation(t *testing.T) {
	f := newFixture(t)
	adminID := uuid.New()
	strp := func(v string) *string { return &v }

	if _, err := f.svc.CreateBlockedSlot(context.Background(), "2026-03-02", strp("10:00"), nil, "x", adminID); err == nil {
		t.Error("expected error for start without end")
	}
	if _, err := f.svc.CreateBlockedSlot(context.Background(), "2026-03-02", strp("11:00"), strp("10:00"), "x", adminID); err == nil {
		t.Error("expected error for end before start")
	}
	if _, err := f.svc.CreateBlockedSlot(context.Background(), "someday", nil, nil, "x", adminID); err == nil {
		t.Error("expected error for malformed date")
	}

	b, err := f.svc.CreateBlockedSlot(context.Background(), "2026-03-02", nil, nil, "clinic closed", adminID)
	if err != nil {
		t.Fatalf("whole-day block: %v", err)
	}
	if b.StartTime != nil {
		t.Error("whole-day block must carry no start time")
	}
	if b.CreatedBy != adminID {
		t.Error("block must record the creating admin")
	}
}

package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Admin may rewrite status freely; the only
// service-enforced transition is booked -> canceled via Cancel.
const (
	StatusBooked    = "booked"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusMissed    = "missed"
)

var validStatuses = map[string]bool{
	StatusBooked: true, StatusCompleted: true, StatusCanceled: true, StatusMissed: true,
}

// Appointment is one booked vet consultation. Rows are never deleted;
// cancellation attaches metadata and flips the status.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	UserPhone          string     `db:"user_phone" json:"user_phone"`
	SubscriptionID     uuid.UUID  `db:"subscription_id" json:"subscription_id"`
	BirdName           string     `db:"bird_name" json:"bird_name"`
	AppointmentDate    time.Time  `db:"appointment_date" json:"appointment_date"`
	SlotStartTime      string     `db:"slot_start_time" json:"slot_start_time"`
	SlotEndTime        string     `db:"slot_end_time" json:"slot_end_time"`
	Symptoms           string     `db:"symptoms" json:"symptoms"`
	Status             string     `db:"status" json:"status"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CanceledBy         *string    `db:"canceled_by" json:"canceled_by,omitempty"`
	CanceledAt         *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreditRestored     bool       `db:"credit_restored" json:"credit_restored"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Settings is the singleton slot-generation configuration row.
type Settings struct {
	SlotDurationMinutes   int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	BufferMinutes         int       `db:"buffer_minutes" json:"buffer_minutes"`
	StartTime             string    `db:"start_time" json:"start_time"`
	EndTime               string    `db:"end_time" json:"end_time"`
	Timezone              string    `db:"timezone" json:"timezone"`
	MaxAdvanceBookingDays int       `db:"max_advance_booking_days" json:"max_advance_booking_days"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// BlockedSlot marks a slot, or a whole day when StartTime is nil, as
// unavailable for booking.
type BlockedSlot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Date      time.Time `db:"blocked_date" json:"date"`
	StartTime *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime   *string   `db:"end_time" json:"end_time,omitempty"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SlotStatus is one entry of the availability response.
type SlotStatus struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
}

// Availability is the response of the available-slots endpoint.
type Availability struct {
	Date     string       `json:"date"`
	Slots    []SlotStatus `json:"slots"`
	Settings *Settings    `json:"settings"`
}

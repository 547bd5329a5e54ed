package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses. A pending row is created at order time and becomes
// active once the payment signature verifies.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusExhausted = "exhausted"
)

// Plan is a purchasable care plan.
type Plan struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	DurationDays  int    `json:"duration_days"`
	PriceCents    int64  `json:"price_cents"`
	Consultations int    `json:"consultations"`
}

// Plans are fixed; prices are INR paise.
var Plans = map[string]Plan{
	"monthly":   {Code: "monthly", Name: "Monthly Care", DurationDays: 30, PriceCents: 99900, Consultations: 2},
	"six-month": {Code: "six-month", Name: "Six Month Care", DurationDays: 180, PriceCents: 499900, Consultations: 12},
	"annual":    {Code: "annual", Name: "Annual Care", DurationDays: 365, PriceCents: 899900, Consultations: 24},
}

// Subscription is one user's purchased plan with its consultation ledger.
type Subscription struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	UserPhone              string     `db:"user_phone" json:"user_phone"`
	Plan                   string     `db:"plan" json:"plan"`
	StartDate              *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate                *time.Time `db:"end_date" json:"end_date,omitempty"`
	AmountPaidCents        int64      `db:"amount_paid_cents" json:"amount_paid_cents"`
	ConsultationsRemaining int        `db:"consultations_remaining" json:"consultations_remaining"`
	Status                 string     `db:"status" json:"status"`
	RazorpayOrderID        *string    `db:"razorpay_order_id" json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID      *string    `db:"razorpay_payment_id" json:"razorpay_payment_id,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// CreditAudit records an admin override of a subscription's ledger.
type CreditAudit struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SubscriptionID uuid.UUID `db:"subscription_id" json:"subscription_id"`
	OldValue       int       `db:"old_value" json:"old_value"`
	NewValue       int       `db:"new_value" json:"new_value"`
	AdminID        uuid.UUID `db:"admin_id" json:"admin_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avicare/avicare/internal/platform/notification"
	"github.com/avicare/avicare/internal/platform/payment"
)

var (
	ErrNotFound             = errors.New("subscription not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrNoCreditsRemaining   = errors.New("no consultations remaining")
	ErrPlanUnknown          = errors.New("unknown plan")
	ErrOrderMismatch        = errors.New("order does not belong to caller")
)

type Service struct {
	subs    Repository
	gateway payment.Gateway
	sms     *notification.Manager
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(subs Repository, gateway payment.Gateway, sms *notification.Manager, logger zerolog.Logger) *Service {
	return &Service{subs: subs, gateway: gateway, sms: sms, logger: logger, now: time.Now}
}

// CreateOrder creates a payment order for the plan and records a pending
// subscription holding the order reference.
func (s *Service) CreateOrder(ctx context.Context, phone, planCode string) (*payment.Order, *Subscription, error) {
	plan, ok := Plans[planCode]
	if !ok {
		return nil, nil, ErrPlanUnknown
	}

	order, err := s.gateway.CreateOrder(ctx, plan.PriceCents, "sub-"+phone)
	if err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	sub := &Subscription{
		UserPhone:       phone,
		Plan:            plan.Code,
		AmountPaidCents: plan.PriceCents,
		Status:          StatusPending,
		RazorpayOrderID: &order.ID,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("record pending subscription: %w", err)
	}
	return order, sub, nil
}

// VerifyPayment checks the checkout signature and activates the pending
// subscription created at order time.
func (s *Service) VerifyPayment(ctx context.Context, phone, orderID, paymentID, signature string) (*Subscription, error) {
	sub, err := s.subs.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if sub.UserPhone != phone {
		return nil, ErrOrderMismatch
	}
	if err := s.gateway.VerifySignature(orderID, paymentID, signature); err != nil {
		return nil, err
	}

	plan, ok := Plans[sub.Plan]
	if !ok {
		return nil, ErrPlanUnknown
	}

	now := s.now().UTC()
	end := now.AddDate(0, 0, plan.DurationDays)
	sub.StartDate = &now
	sub.EndDate = &end
	sub.ConsultationsRemaining = plan.Consultations
	sub.Status = StatusActive
	sub.RazorpayPaymentID = &paymentID
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	go func() {
		if _, err := s.sms.SendFromTemplate(context.Background(), "subscription-activated", map[string]string{
			"plan":     plan.Name,
			"end_date": end.Format("2006-01-02"),
			"credits":  fmt.Sprintf("%d", plan.Consultations),
		}, phone); err != nil {
			s.logger.Warn().Err(err).Str("phone", phone).Msg("subscription sms failed")
		}
	}()

	return sub, nil
}

// Current returns the caller's active subscription, lazily expiring one whose
// end date has passed.
func (s *Service) Current(ctx context.Context, phone string) (*Subscription, error) {
	return s.activeByPhone(ctx, phone, false)
}

// ActiveForUpdate is Current with a row lock; callers must run inside a
// transaction (db.WithTx).
func (s *Service) ActiveForUpdate(ctx context.Context, phone string) (*Subscription, error) {
	return s.activeByPhone(ctx, phone, true)
}

func (s *Service) activeByPhone(ctx context.Context, phone string, forUpdate bool) (*Subscription, error) {
	var (
		sub *Subscription
		err error
	)
	if forUpdate {
		sub, err = s.subs.GetActiveByPhoneForUpdate(ctx, phone)
	} else {
		sub, err = s.subs.GetActiveByPhone(ctx, phone)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	if sub.EndDate != nil && s.now().UTC().After(*sub.EndDate) {
		sub.Status = StatusExpired
		if err := s.subs.Update(ctx, sub); err != nil {
			return nil, fmt.Errorf("expire subscription: %w", err)
		}
		return nil, ErrNoActiveSubscription
	}
	return sub, nil
}

// Deduct takes one consultation credit off the subscription. It is expected
// to run inside the booking transaction with the row already locked.
func (s *Service) Deduct(ctx context.Context, id uuid.UUID) error {
	sub, err := s.subs.GetByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusActive {
		return ErrNoActiveSubscription
	}
	if sub.ConsultationsRemaining <= 0 {
		return ErrNoCreditsRemaining
	}
	sub.ConsultationsRemaining--
	return s.subs.Update(ctx, sub)
}

// Restore returns one consultation credit, used by qualifying cancellations.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) error {
	sub, err := s.subs.GetByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}
	sub.ConsultationsRemaining++
	if sub.Status == StatusExhausted {
		sub.Status = StatusActive
	}
	return s.subs.Update(ctx, sub)
}

// AdminSetConsultations overwrites the ledger and records an audit row.
// A zero value flips the subscription to exhausted.
func (s *Service) AdminSetConsultations(ctx context.Context, id uuid.UUID, value int, adminID uuid.UUID) (*Subscription, error) {
	if value < 0 {
		return nil, fmt.Errorf("consultations must be non-negative")
	}
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	audit := &CreditAudit{
		SubscriptionID: sub.ID,
		OldValue:       sub.ConsultationsRemaining,
		NewValue:       value,
		AdminID:        adminID,
	}
	if err := s.subs.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("write credit audit: %w", err)
	}

	sub.ConsultationsRemaining = value
	if value == 0 {
		sub.Status = StatusExhausted
	} else if sub.Status == StatusExhausted {
		sub.Status = StatusActive
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Subscription, int, error) {
	return s.subs.Search(ctx, params, limit, offset)
}

func (s *Service) ListAudit(ctx context.Context, id uuid.UUID) ([]*CreditAudit, error) {
	return s.subs.ListAudit(ctx, id)
}

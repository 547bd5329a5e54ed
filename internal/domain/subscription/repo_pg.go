package subscription

import (
	"context"
	"errors"
	"fmt"

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

const subCols = `id, user_phone, plan, start_date, end_date, amount_paid_cents,
	consultations_remaining, status, razorpay_order_id, razorpay_payment_id,
	created_at, updated_at`

func (r *repoPG) scanSub(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserPhone, &s.Plan, &s.StartDate, &s.EndDate, &s.AmountPaidCents,
		&s.ConsultationsRemaining, &s.Status, &s.RazorpayOrderID, &s.RazorpayPaymentID,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Subscription) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO subscription (id, user_phone, plan, start_date, end_date,
			amount_paid_cents, consultations_remaining, status, razorpay_order_id, razorpay_payment_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.UserPhone, s.Plan, s.StartDate, s.EndDate,
		s.AmountPaidCents, s.ConsultationsRemaining, s.Status, s.RazorpayOrderID, s.RazorpayPaymentID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return r.scanSub(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM subscription WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return r.scanSub(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM subscription WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetByOrderID(ctx context.Context, orderID string) (*Subscription, error) {
	return r.scanSub(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM subscription WHERE razorpay_order_id = $1`, orderID))
}

func (r *repoPG) GetActiveByPhone(ctx context.Context, phone string) (*Subscription, error) {
	return r.scanSub(r.conn(ctx).QueryRow(ctx, `
		SELECT `+subCols+` FROM subscription
		WHERE user_phone = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, phone, StatusActive))
}

func (r *repoPG) GetActiveByPhoneForUpdate(ctx context.Context, phone string) (*Subscription, error) {
	return r.scanSub(r.conn(ctx).QueryRow(ctx, `
		SELECT `+subCols+` FROM subscription
		WHERE user_phone = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`, phone, StatusActive))
}

func (r *repoPG) Update(ctx context.Context, s *Subscription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE subscription SET plan=$2, start_date=$3, end_date=$4, amount_paid_cents=$5,
			consultations_remaining=$6, status=$7, razorpay_payment_id=$8, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Plan, s.StartDate, s.EndDate, s.AmountPaidCents,
		s.ConsultationsRemaining, s.Status, s.RazorpayPaymentID)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Subscription, int, error) {
	query := `SELECT ` + subCols + ` FROM subscription WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM subscription WHERE 1=1`
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
	if p, ok := params["plan"]; ok {
		query += fmt.Sprintf(` AND plan = $%d`, idx)
		countQuery += fmt.Sprintf(` AND plan = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Subscription
	for rows.Next() {
		s, err := r.scanSub(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

func (r *repoPG) CreateAudit(ctx context.Context, a *CreditAudit) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO credit_audit (id, subscription_id, old_value, new_value, admin_id)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.SubscriptionID, a.OldValue, a.NewValue, a.AdminID)
	return err
}

func (r *repoPG) ListAudit(ctx context.Context, subscriptionID uuid.UUID) ([]*CreditAudit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, subscription_id, old_value, new_value, admin_id, created_at
		FROM credit_audit WHERE subscription_id = $1 ORDER BY created_at DESC`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CreditAudit
	for rows.Next() {
		var a CreditAudit
		if err := rows.Scan(&a.ID, &a.SubscriptionID, &a.OldValue, &a.NewValue, &a.AdminID, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}

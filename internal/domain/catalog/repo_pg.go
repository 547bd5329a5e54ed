package catalog

import (
	"context"
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

const birdCols = `id, name, species, description, price_cents, image_url, available, created_at, updated_at`

func (r *repoPG) scanBird(row pgx.Row) (*Bird, error) {
	var b Bird
	err := row.Scan(&b.ID, &b.Name, &b.Species, &b.Description, &b.PriceCents,
		&b.ImageURL, &b.Available, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bird) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bird (id, name, species, description, price_cents, image_url, available)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.Name, b.Species, b.Description, b.PriceCents, b.ImageURL, b.Available)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bird, error) {
	return r.scanBird(r.conn(ctx).QueryRow(ctx, `SELECT `+birdCols+` FROM bird WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Bird) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bird SET name=$2, species=$3, description=$4, price_cents=$5,
			image_url=$6, available=$7, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Name, b.Species, b.Description, b.PriceCents, b.ImageURL, b.Available)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM bird WHERE id = $1`, id)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Bird, int, error) {
	query := `SELECT ` + birdCols + ` FROM bird WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM bird WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["species"]; ok {
		query += fmt.Sprintf(` AND species = $%d`, idx)
		countQuery += fmt.Sprintf(` AND species = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["available"]; ok {
		query += fmt.Sprintf(` AND available = $%d`, idx)
		countQuery += fmt.Sprintf(` AND available = $%d`, idx)
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
	var items []*Bird
	for rows.Next() {
		b, err := r.scanBird(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, nil
}

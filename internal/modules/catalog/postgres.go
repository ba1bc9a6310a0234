package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const productColumns = `id,name,price,image_url,stock,purchases,created_at,updated_at`

func (r *postgresRepo) Create(ctx context.Context, p *Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.Price, p.ImageURL, p.Stock, p.Purchases, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func scanProduct(scan func(...interface{}) error) (*Product, error) {
	p := &Product{}
	err := scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Stock, &p.Purchases,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, productNotFound(id)
	}
	return p, err
}

func (r *postgresRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	out := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *postgresRepo) Update(ctx context.Context, p *Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET name=$1, price=$2, image_url=$3, updated_at=$4
		WHERE id=$5`,
		p.Name, p.Price, p.ImageURL, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return productNotFound(p.ID)
	}
	return nil
}

// AdjustStock is a single guarded UPDATE; the guard and the write are one statement.
func (r *postgresRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + $1, updated_at = $2
		WHERE id = $3 AND stock + $1 >= 0`,
		delta, time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("adjust stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, productNotFound(id)
	}
	return false, nil
}

func (r *postgresRepo) IncrementPurchases(ctx context.Context, id uuid.UUID, n int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET purchases = purchases + $1, updated_at = $2 WHERE id = $3`,
		n, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return productNotFound(id)
	}
	return nil
}

func productNotFound(id uuid.UUID) error {
	return apperr.NotFound(apperr.CodeProductNotFound, fmt.Sprintf("product %s not found", id))
}

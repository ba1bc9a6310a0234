package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const orderColumns = `id,order_code,user_id,payment_method,status,payment_status,
	payment_url,payment_transaction_id,total,cancel_reason,created_at,
	pending_at,confirmed_at,shipping_at,delivered_at,cancelled_at,updated_at`

// CreateOrder inserts the order and all its lines inside a single transaction.
func (r *postgresRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, order_code, user_id, shipping_address, payment_method, status, payment_status,
		   payment_url, payment_transaction_id, total, cancel_reason, created_at, pending_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.OrderCode, o.UserID, nullableJSON(o.ShippingAddress), o.PaymentMethod, o.Status,
		o.PaymentStatus, o.PaymentURL, o.PaymentTransactionID, o.Total, o.CancelReason,
		o.CreatedAt, nullableMillis(o.PendingAt), o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.Conflict(CodeOrderCodeTaken, "order code already taken")
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, l := range o.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines
			  (order_id, position, product_id, name, unit_price, quantity, image_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, l.ProductID, l.Name, l.UnitPrice, l.Quantity, l.ImageURL)
		if err != nil {
			return fmt.Errorf("insert order_line: %w", err)
		}
	}

	return tx.Commit()
}

func (r *postgresRepo) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.findOne(ctx, `WHERE id=$1`, id)
}

func (r *postgresRepo) FindByCode(ctx context.Context, code string) (*Order, error) {
	return r.findOne(ctx, `WHERE order_code=$1`, code)
}

func (r *postgresRepo) findOne(ctx context.Context, where string, arg interface{}) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`,shipping_address FROM orders `+where, arg)
	o, err := scanOrder(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, err
	}
	lines, err := r.listLines(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *postgresRepo) UpdateFields(ctx context.Context, id uuid.UUID, p Patch, at int64) error {
	sets := []string{"updated_at=$1"}
	args := []interface{}{at}
	if p.PaymentURL != nil {
		args = append(args, *p.PaymentURL)
		sets = append(sets, fmt.Sprintf("payment_url=$%d", len(args)))
	}
	if p.PaymentTransactionID != nil {
		args = append(args, *p.PaymentTransactionID)
		sets = append(sets, fmt.Sprintf("payment_transaction_id=$%d", len(args)))
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE orders SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return orderNotFound()
	}
	return nil
}

// Transition is a single guarded UPDATE; the predecessor check and the write are one statement.
func (r *postgresRepo) Transition(ctx context.Context, id uuid.UUID, c Change) (*Order, error) {
	column, ok := statusTimestamp[c.To]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", c.To))
	}
	from := predecessors(c.To)
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status=$1, `+column+`=$2, updated_at=$2,
		       cancel_reason = CASE WHEN $1::text = 'CANCELLED' THEN $3::text ELSE cancel_reason END
		WHERE id=$4 AND status = ANY($5) AND ($6::text = '' OR payment_status = $6::text)`,
		c.To, c.At, c.Reason, id, pq.Array(allowed), c.IfPayment)
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if CanTransition(current.Status, c.To) {
			return nil, paymentSettled(current.PaymentStatus)
		}
		return nil, apperr.InvalidTransition(string(current.Status), string(c.To))
	}
	return current, nil
}

func (r *postgresRepo) MarkPaid(ctx context.Context, id uuid.UUID, txnID string, at int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status='PAID', payment_transaction_id=$1, updated_at=$2
		WHERE id=$3 AND payment_status='UNPAID'`,
		txnID, at, id)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
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
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, orderNotFound()
	}
	return false, nil
}

func (r *postgresRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, to PaymentStatus, at int64) (*Order, error) {
	from := paymentPredecessors(to)
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status=$1, updated_at=$2
		WHERE id=$3 AND payment_status = ANY($4)`,
		to, at, id, pq.Array(allowed))
	if err != nil {
		return nil, fmt.Errorf("set payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.InvalidTransition(string(current.PaymentStatus), string(to))
	}
	return current, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, q ListQuery) (*PageResult, error) {
	return r.list(ctx, q, "user_id=$1", userID)
}

func (r *postgresRepo) ListAll(ctx context.Context, q ListQuery) (*PageResult, error) {
	return r.list(ctx, q, "")
}

func (r *postgresRepo) list(ctx context.Context, q ListQuery, where string, args ...interface{}) (*PageResult, error) {
	q = q.normalised()
	conds := []string{}
	if where != "" {
		conds = append(conds, where)
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, q.Limit, q.offset())
	orders, err := r.queryOrders(ctx,
		fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
			orderColumns, clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, err
	}
	return &PageResult{Orders: orders, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (r *postgresRepo) ListStale(ctx context.Context, method PaymentMethod, createdBefore int64, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = maxLimit
	}
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status='PENDING' AND payment_status='UNPAID' AND payment_method=$1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`,
		method, createdBefore, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func scanOrder(scan func(...interface{}) error, withAddress bool) (*Order, error) {
	o := &Order{}
	var pending, confirmed, shipping, delivered, cancelled sql.NullInt64
	dest := []interface{}{
		&o.ID, &o.OrderCode, &o.UserID, &o.PaymentMethod, &o.Status, &o.PaymentStatus,
		&o.PaymentURL, &o.PaymentTransactionID, &o.Total, &o.CancelReason, &o.CreatedAt,
		&pending, &confirmed, &shipping, &delivered, &cancelled, &o.UpdatedAt,
	}
	var address []byte
	if withAddress {
		dest = append(dest, &address)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	o.PendingAt = pending.Int64
	o.ConfirmedAt = confirmed.Int64
	o.ShippingAt = shipping.Int64
	o.DeliveredAt = delivered.Int64
	o.CancelledAt = cancelled.Int64
	if len(address) > 0 {
		o.ShippingAddress = address
	}
	return o, nil
}

func (r *postgresRepo) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []*Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		o, err := scanOrder(rows.Scan, false)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := r.listLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Lines = lines[o.ID]
	}
	return orders, nil
}

func (r *postgresRepo) listLines(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	out := make(map[uuid.UUID][]Line, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		keys[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, unit_price, quantity, image_url
		FROM order_lines WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`,
		pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID uuid.UUID
		var l Line
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.ImageURL); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableMillis(ms int64) interface{} {
	if ms == 0 {
		return nil
	}
	return ms
}

package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `
	o.id, o.buyer_id, o.farmer_id, o.produce_id, o.quantity, o.unit_price,
	o.total_price, o.status, o.payment_status, o.pickup_date, o.notes,
	o.cancellation_reason, o.cancelled_at, o.completed_at, o.created_at, o.updated_at,
	COALESCE(p.name, ''), COALESCE(p.unit, '')
`

const orderFrom = ` FROM orders o LEFT JOIN produce p ON o.produce_id = p.id `

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var o Order
	err := s.Scan(
		&o.ID, &o.BuyerID, &o.FarmerID, &o.ProduceID, &o.Quantity, &o.UnitPrice,
		&o.TotalPrice, &o.Status, &o.PaymentStatus, &o.PickupDate, &o.Notes,
		&o.CancellationReason, &o.CancelledAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
		&o.ProduceName, &o.ProduceUnit,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Order, error) {
	return r.list(ctx, `WHERE o.buyer_id=$1 ORDER BY o.created_at DESC`, buyerID)
}

func (r *Repo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Order, error) {
	return r.list(ctx, `WHERE o.farmer_id=$1 ORDER BY o.created_at DESC`, farmerID)
}

func (r *Repo) list(ctx context.Context, tail string, args ...any) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type AdminFilter struct {
	Status Status
	Page   int
	Limit  int
}

// ListAll is the admin surface: optional status filter plus pagination.
func (r *Repo) ListAll(ctx context.Context, f AdminFilter) ([]*Order, int, error) {
	where := "TRUE"
	var args []any
	idx := 1
	if f.Status != "" {
		where = fmt.Sprintf("o.status=$%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders o WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Page < 1 {
		f.Page = 1
	}
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	tail := fmt.Sprintf(`WHERE %s ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d`, where, idx, idx+1)

	out, err := r.list(ctx, tail, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

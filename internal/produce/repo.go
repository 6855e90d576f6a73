package produce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrListingReferenced blocks deletion while any non-terminal order still
// points at the listing.
var ErrListingReferenced = errors.New("listing has open orders")

type Repo struct{ DB *pgxpool.Pool }

const listingColumns = `
	id, farmer_id, name, category, description, quantity_available, original_quantity,
	unit, price_per_unit, available_date, harvest_date, is_organic, images, status,
	created_at, updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*Listing, error) {
	var l Listing
	err := s.Scan(
		&l.ID, &l.FarmerID, &l.Name, &l.Category, &l.Description,
		&l.QuantityAvailable, &l.OriginalQuantity, &l.Unit, &l.PricePerUnit,
		&l.AvailableDate, &l.HarvestDate, &l.IsOrganic, &l.Images, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) Create(ctx context.Context, p CreateParams) (*Listing, error) {
	now := time.Now().UTC()
	l := &Listing{
		ID:                uuid.New(),
		FarmerID:          p.FarmerID,
		Name:              p.Name,
		Category:          p.Category,
		Description:       p.Description,
		QuantityAvailable: p.Quantity,
		OriginalQuantity:  p.Quantity,
		Unit:              p.Unit,
		PricePerUnit:      p.PricePerUnit,
		AvailableDate:     p.AvailableDate,
		HarvestDate:       p.HarvestDate,
		IsOrganic:         p.IsOrganic,
		Images:            p.Images,
		Status:            DeriveStatus(p.Quantity, p.AvailableDate, now),
	}

	err := r.DB.QueryRow(ctx, `
		INSERT INTO produce(id, farmer_id, name, category, description,
			quantity_available, original_quantity, unit, price_per_unit,
			available_date, harvest_date, is_organic, images, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		l.ID, l.FarmerID, l.Name, l.Category, l.Description,
		l.QuantityAvailable, l.OriginalQuantity, l.Unit, l.PricePerUnit,
		l.AvailableDate, l.HarvestDate, l.IsOrganic, l.Images, l.Status,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert produce: %w", err)
	}
	return l, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := scanListing(r.DB.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM produce WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get produce: %w", err)
	}
	return l, nil
}

type ListFilter struct {
	Category   Category
	Search     string
	SortBy     string
	SortDesc   bool
	Page       int
	Limit      int
	ActiveOnly bool
}

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"pricePerUnit":  "price_per_unit",
	"availableDate": "available_date",
	"name":          "name",
}

// List drives the public browse page. ActiveOnly means in-stock listings whose
// availability window has not passed, regardless of the stored status column.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]*Listing, int, error) {
	where := "TRUE"
	var args []any
	idx := 1

	if f.ActiveOnly {
		where += " AND quantity_available > 0 AND available_date >= NOW()"
	}
	if f.Category != "" && f.Category != "All" {
		where += fmt.Sprintf(" AND category=$%d", idx)
		args = append(args, f.Category)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM produce WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count produce: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := fmt.Sprintf(`SELECT %s FROM produce WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		listingColumns, where, col, dir, idx, idx+1)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list produce: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan produce: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *Repo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Listing, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+listingColumns+` FROM produce WHERE farmer_id=$1 ORDER BY created_at DESC`, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list farmer produce: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan produce: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type UpdateParams struct {
	Name          *string
	Category      *Category
	Description   *string
	PricePerUnit  *decimal.Decimal
	AvailableDate *time.Time
	IsOrganic     *bool
	Images        []string
	HarvestDate   *time.Time
}

// Update touches descriptive fields only. Quantities move exclusively through
// the ledger path so the debit/credit invariant cannot drift.
func (r *Repo) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Listing, error) {
	l, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Category != nil {
		l.Category = *p.Category
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.PricePerUnit != nil {
		l.PricePerUnit = *p.PricePerUnit
	}
	if p.AvailableDate != nil {
		l.AvailableDate = *p.AvailableDate
	}
	if p.IsOrganic != nil {
		l.IsOrganic = *p.IsOrganic
	}
	if p.Images != nil {
		l.Images = p.Images
	}
	if p.HarvestDate != nil {
		l.HarvestDate = p.HarvestDate
	}
	l.Status = DeriveStatus(l.QuantityAvailable, l.AvailableDate, time.Now().UTC())

	err = r.DB.QueryRow(ctx, `
		UPDATE produce SET name=$2, category=$3, description=$4, price_per_unit=$5,
			available_date=$6, harvest_date=$7, is_organic=$8, images=$9, status=$10,
			updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at`,
		l.ID, l.Name, l.Category, l.Description, l.PricePerUnit,
		l.AvailableDate, l.HarvestDate, l.IsOrganic, l.Images, l.Status,
	).Scan(&l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update produce: %w", err)
	}
	return l, nil
}

// Delete refuses to remove a listing that non-terminal orders still reference.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	var open bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE produce_id=$1 AND status NOT IN ('completed','cancelled'))`, id).Scan(&open)
	if err != nil {
		return fmt.Errorf("check open orders: %w", err)
	}
	if open {
		return ErrListingReferenced
	}

	ct, err := r.DB.Exec(ctx, `DELETE FROM produce WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete produce: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package produce

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryVegetables Category = "Vegetables"
	CategoryFruits     Category = "Fruits"
	CategoryGrains     Category = "Grains"
	CategoryHerbs      Category = "Herbs"
	CategoryDairy      Category = "Dairy"
	CategoryMeat       Category = "Meat"
	CategoryOther      Category = "Other"
)

var categories = map[Category]bool{
	CategoryVegetables: true, CategoryFruits: true, CategoryGrains: true,
	CategoryHerbs: true, CategoryDairy: true, CategoryMeat: true, CategoryOther: true,
}

func (c Category) Valid() bool { return categories[c] }

type Unit string

const (
	UnitKg      Unit = "kg"
	UnitLb      Unit = "lb"
	UnitPieces  Unit = "pieces"
	UnitBunches Unit = "bunches"
	UnitBags    Unit = "bags"
	UnitBoxes   Unit = "boxes"
	UnitLiters  Unit = "liters"
	UnitGallons Unit = "gallons"
)

var units = map[Unit]bool{
	UnitKg: true, UnitLb: true, UnitPieces: true, UnitBunches: true,
	UnitBags: true, UnitBoxes: true, UnitLiters: true, UnitGallons: true,
}

func (u Unit) Valid() bool { return units[u] }

type Status string

const (
	StatusActive  Status = "active"
	StatusSoldOut Status = "sold_out"
	StatusExpired Status = "expired"
)

var (
	ErrNotFound = errors.New("produce not found")

	// ErrCreditOverflow means a credit would push the available quantity past
	// the original quantity. That is a double-credit bug, not a user error.
	ErrCreditOverflow = errors.New("credit exceeds original quantity")
)

// OutOfStockError carries the actual remaining quantity so the buyer can
// retry with a smaller amount.
type OutOfStockError struct {
	Available int
	Unit      Unit
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("only %d %s available", e.Available, e.Unit)
}

type Listing struct {
	ID                uuid.UUID
	FarmerID          uuid.UUID
	Name              string
	Category          Category
	Description       string
	QuantityAvailable int
	OriginalQuantity  int
	Unit              Unit
	PricePerUnit      decimal.Decimal
	AvailableDate     time.Time
	HarvestDate       *time.Time
	IsOrganic         bool
	Images            []string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DeriveStatus is the only way a listing status is computed. Callers never
// set status directly.
func DeriveStatus(quantity int, availableDate, now time.Time) Status {
	if quantity <= 0 {
		return StatusSoldOut
	}
	if now.After(availableDate) {
		return StatusExpired
	}
	return StatusActive
}

// Debit reduces the available quantity in memory. The repo applies the same
// rule under a row lock; this method keeps the guard testable on its own.
func (l *Listing) Debit(qty int, now time.Time) error {
	if qty > l.QuantityAvailable {
		return &OutOfStockError{Available: l.QuantityAvailable, Unit: l.Unit}
	}
	l.QuantityAvailable -= qty
	l.Status = DeriveStatus(l.QuantityAvailable, l.AvailableDate, now)
	return nil
}

// Credit restores quantity after a cancellation. It never pushes the quantity
// above OriginalQuantity; an attempt to do so is reported, not clamped.
func (l *Listing) Credit(qty int, now time.Time) error {
	if l.QuantityAvailable+qty > l.OriginalQuantity {
		return fmt.Errorf("%w: %d + %d > %d", ErrCreditOverflow, l.QuantityAvailable, qty, l.OriginalQuantity)
	}
	l.QuantityAvailable += qty
	l.Status = DeriveStatus(l.QuantityAvailable, l.AvailableDate, now)
	return nil
}

type CreateParams struct {
	FarmerID      uuid.UUID
	Name          string
	Category      Category
	Description   string
	Quantity      int
	Unit          Unit
	PricePerUnit  decimal.Decimal
	AvailableDate time.Time
	HarvestDate   *time.Time
	IsOrganic     bool
	Images        []string
}

func (p CreateParams) Validate(now time.Time) error {
	if n := len(p.Name); n < 2 || n > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	if !p.Category.Valid() {
		return errors.New("invalid category")
	}
	if p.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	if !p.Unit.Valid() {
		return errors.New("invalid unit")
	}
	if !p.PricePerUnit.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	if len(p.Description) > 500 {
		return errors.New("description cannot exceed 500 characters")
	}
	if p.AvailableDate.Before(startOfDay(now)) {
		return errors.New("available date cannot be in the past")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

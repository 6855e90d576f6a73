package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

// User is the thin slice of the account the core needs: enough to address
// notifications. Account management itself is outside this API.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, email, role FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

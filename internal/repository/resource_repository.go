package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studio-booking/internal/model"
)

// ResourceRepo reads bookable resources.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo constructs a ResourceRepo with the given DB handle.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `id, name, booking_type, capacity, location, timezone, opens_at_minutes, closes_at_minutes`

func scanResource(row interface{ Scan(...any) error }) (*model.Resource, error) {
	var r model.Resource
	var bt string
	if err := row.Scan(&r.ID, &r.Name, &bt, &r.Capacity, &r.Location, &r.Timezone, &r.OpensAt, &r.ClosesAt); err != nil {
		return nil, err
	}
	r.BookingType = model.BookingType(bt)
	return &r, nil
}

// GetByID returns a single resource or ErrNotFound.
func (r *ResourceRepo) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// List returns resources ordered by name, optionally filtered by type.
func (r *ResourceRepo) List(ctx context.Context, t model.BookingType) ([]model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources`
	var args []any
	if t != "" {
		q += ` WHERE booking_type = ?`
		args = append(args, string(t))
	}
	q += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

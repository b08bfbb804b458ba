package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-booking/internal/model"
)

// CatalogRepo reads the services and staff offered on a resource.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ServicesByResource lists active services in display order.
func (r *CatalogRepo) ServicesByResource(ctx context.Context, resourceID string) ([]model.Service, error) {
	const q = `SELECT id, resource_id, name, price_cents, duration_minutes
	           FROM services
	           WHERE resource_id = ? AND active = 1
	           ORDER BY sort_order, name`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Service{}
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ResourceID, &s.Name, &s.PriceCents, &s.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StaffByResource lists staff for a resource, available first.
func (r *CatalogRepo) StaffByResource(ctx context.Context, resourceID string) ([]model.Staff, error) {
	const q = `SELECT id, name, available FROM staff WHERE resource_id = ? ORDER BY available DESC, name`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Staff{}
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.Available); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Catalog loads services and staff together.
func (r *CatalogRepo) Catalog(ctx context.Context, resourceID string) (*model.Catalog, error) {
	svcs, err := r.ServicesByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	staff, err := r.StaffByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return &model.Catalog{Services: svcs, Staff: staff}, nil
}

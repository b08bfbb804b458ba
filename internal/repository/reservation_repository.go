package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/studio-booking/internal/model"
)

// ReservationRepo provides persistence for reservations.  All timestamp
// fields are stored in UTC and intervals are half-open: a reservation
// occupies [start_time, end_time).
type ReservationRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, now: time.Now}
}

// Interval is an occupied span of a resource together with the number of
// capacity units it consumes.
type Interval struct {
	Start time.Time
	End   time.Time
	Units int
}

const reservationColumns = `id, resource_id, title, description, start_time, end_time, capacity,
	location, notes, user_name, user_email, metadata, status, idempotency_key, reminded_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res        model.Reservation
		desc       sql.NullString
		notes      sql.NullString
		meta       []byte
		remindedAt sql.NullTime
	)
	err := row.Scan(&res.ID, &res.ResourceID, &res.Title, &desc, &res.StartTime, &res.EndTime,
		&res.Capacity, &res.Location, &notes, &res.UserName, &res.UserEmail, &meta, &res.Status,
		&res.IdempotencyKey, &remindedAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	res.Description = desc.String
	res.Notes = notes.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &res.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if remindedAt.Valid {
		t := remindedAt.Time.UTC()
		res.RemindedAt = &t
	}
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create stores a new reservation in a single transaction.  If a row with
// the same idempotency key already exists it is returned together with
// ErrDuplicateRequest and nothing is written.  Otherwise the resource row
// is locked and the new reservation is inserted only when the capacity
// already confirmed for overlapping intervals leaves room for it;
// ErrSlotTaken is returned when it does not.
func (r *ReservationRepo) Create(ctx context.Context, req model.CreateReservationRequest, key string) (*model.Reservation, error) {
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if !end.After(start) || req.ResourceID == "" || key == "" {
		return nil, ErrInvalidRequest
	}
	units := req.Capacity
	if units <= 0 {
		units = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE idempotency_key = ?`, key))
	switch {
	case err == nil:
		return existing, ErrDuplicateRequest
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	var capacity int
	err = tx.QueryRowContext(ctx, `SELECT capacity FROM resources WHERE id = ? FOR UPDATE`, req.ResourceID).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var used int
	const overlapQ = `SELECT COALESCE(SUM(capacity), 0) FROM reservations
	                  WHERE resource_id = ? AND status = ? AND start_time < ? AND end_time > ?`
	if err := tx.QueryRowContext(ctx, overlapQ, req.ResourceID, model.StatusConfirmed, end, start).Scan(&used); err != nil {
		return nil, err
	}
	if used+units > capacity {
		return nil, ErrSlotTaken
	}

	var meta []byte
	if len(req.Metadata) > 0 {
		if meta, err = json.Marshal(req.Metadata); err != nil {
			return nil, err
		}
	}
	id := uuid.NewString()
	const ins = `INSERT INTO reservations
		(id, resource_id, title, description, start_time, end_time, capacity, location, notes,
		 user_name, user_email, metadata, status, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins, id, req.ResourceID, req.Title, nullable(req.Description), start, end,
		units, req.Location, nullable(req.Notes), req.UserName, strings.ToLower(req.UserEmail), meta,
		model.StatusConfirmed, key)
	if isDuplicateKey(err) {
		// A concurrent request with the same key committed first.  Its
		// row is invisible to this transaction's snapshot, so read it
		// after rolling back.
		_ = tx.Rollback()
		committed = true
		if existing, lerr := r.getByKey(ctx, key); lerr == nil {
			return existing, ErrDuplicateRequest
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	// Query back the full row to populate timestamps and defaults
	created, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return created, nil
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func (r *ReservationRepo) getByKey(ctx context.Context, key string) (*model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE idempotency_key = ?`, key))
}

// GetByID returns a reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListByEmail returns every reservation made under the email, newest
// start first.
func (r *ReservationRepo) ListByEmail(ctx context.Context, email string) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_email = ? ORDER BY start_time DESC`,
		strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// ListByResource returns reservations of a resource that overlap
// [from, to).  A zero bound is treated as open.
func (r *ReservationRepo) ListByResource(ctx context.Context, resourceID string, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE resource_id = ?`
	args := []any{resourceID}
	if !to.IsZero() {
		q += ` AND start_time < ?`
		args = append(args, to.UTC())
	}
	if !from.IsZero() {
		q += ` AND end_time > ?`
		args = append(args, from.UTC())
	}
	q += ` ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// BusyIntervals returns the confirmed intervals of a resource that
// overlap [from, to).
func (r *ReservationRepo) BusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]Interval, error) {
	const q = `SELECT start_time, end_time, capacity FROM reservations
	           WHERE resource_id = ? AND status = ? AND start_time < ? AND end_time > ?
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, resourceID, model.StatusConfirmed, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End, &iv.Units); err != nil {
			return nil, err
		}
		iv.Start, iv.End = iv.Start.UTC(), iv.End.UTC()
		out = append(out, iv)
	}
	return out, rows.Err()
}

// Cancel marks a confirmed reservation as cancelled.  When email is
// non-empty the reservation must belong to it, otherwise ErrForbidden is
// returned.  Reservations that already started or are no longer
// confirmed yield ErrConflict.
func (r *ReservationRepo) Cancel(ctx context.Context, id, email string) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if email != "" && !strings.EqualFold(res.UserEmail, email) {
		return nil, ErrForbidden
	}
	if res.Status != model.StatusConfirmed || !res.StartTime.After(r.now()) {
		return nil, ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE id = ?`, model.StatusCancelled, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	res.Status = model.StatusCancelled
	return res, nil
}

// FinishEndedBefore moves confirmed reservations whose end is at or
// before cutoff to FINISHED and returns them.
func (r *ReservationRepo) FinishEndedBefore(ctx context.Context, cutoff time.Time) ([]model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE status = ? AND end_time <= ? FOR UPDATE`,
		model.StatusConfirmed, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	ended, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}
	if len(ended) == 0 {
		return ended, nil
	}
	placeholders := make([]string, len(ended))
	args := make([]any, 0, len(ended)+1)
	args = append(args, model.StatusFinished)
	for i := range ended {
		placeholders[i] = "?"
		args = append(args, ended[i].ID)
		ended[i].Status = model.StatusFinished
	}
	upd := `UPDATE reservations SET status = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ended, nil
}

// ListUpcomingUnreminded returns confirmed reservations starting within
// [from, to) that have not had a reminder sent.
func (r *ReservationRepo) ListUpcomingUnreminded(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = ? AND reminded_at IS NULL AND start_time >= ? AND start_time < ?
		 ORDER BY start_time`,
		model.StatusConfirmed, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// MarkReminded claims the reminder for a reservation.  It returns
// ErrConflict when the reservation is unknown or was already claimed, so
// that concurrent schedulers send at most one reminder.
func (r *ReservationRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET reminded_at = ? WHERE id = ? AND reminded_at IS NULL`, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

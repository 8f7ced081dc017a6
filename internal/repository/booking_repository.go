package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
	"github.com/fieldcrew/shiftpoint/internal/service"
)

const bookingColumns = `id, worker_id, site_id, slot_id, start_at, end_at,
	rate, status, notification_sent, cancel_reason, created_at, updated_at`

// BookingRepo manages persistence for bookings.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingByID returns the booking or nil when it does not exist.
func (r *BookingRepo) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=? LIMIT 1`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ReserveInSlot inserts a booking after re-checking occupancy under a
// row lock on the slot.  Concurrent reservations of the same slot
// serialize on SELECT ... FOR UPDATE, so the state passed to decide is
// the state the insert will commit against.
func (r *BookingRepo) ReserveInSlot(ctx context.Context, booking *model.Booking, site *model.Site, slot *model.CapacitySlot, decide service.DecideFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM capacity_slots WHERE id=? FOR UPDATE`, slot.ID).Scan(&locked); err != nil {
		return err
	}

	occupants, err := slotOccupants(ctx, tx, site, slot)
	if err != nil {
		return err
	}
	claims, err := workerClaims(ctx, tx, booking.WorkerID, booking.StartAt, booking.EndAt)
	if err != nil {
		return err
	}
	if err := decide(occupants, claims); err != nil {
		return err
	}

	const ins = `INSERT INTO bookings
		(worker_id, site_id, slot_id, start_at, end_at, rate, status)
		VALUES (?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, ins,
		booking.WorkerID, booking.SiteID, nullableID(booking.SlotID),
		booking.StartAt, booking.EndAt, booking.Rate, booking.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	booking.ID = uint64(id)

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetBookingStatus moves the booking to status `to` only while its
// current status is one of `from`.  It reports whether a row changed,
// which is what makes racing cancellations a no-op.
func (r *BookingRepo) SetBookingStatus(ctx context.Context, id uint64, from []string, to string, reason *string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{to, nullableString(reason), id}
	for _, s := range from {
		args = append(args, s)
	}
	q := `UPDATE bookings SET status=?, cancel_reason=? WHERE id=? AND status IN (?` +
		strings.Repeat(",?", len(from)-1) + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkBookingNotified flags the booking after its state-change event
// reached the queue.
func (r *BookingRepo) MarkBookingNotified(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET notification_sent=1 WHERE id=?`, id)
	return err
}

// BookingsByWorker lists the worker's bookings, newest start first.
func (r *BookingRepo) BookingsByWorker(ctx context.Context, workerID uint64) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE worker_id=? ORDER BY start_at DESC, id DESC`,
		workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// BookingsBySite lists bookings at the site, newest start first.  A
// non-nil day narrows the list to bookings starting on that UTC date.
func (r *BookingRepo) BookingsBySite(ctx context.Context, siteID uint64, day *time.Time) ([]*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE site_id=?`
	args := []any{siteID}
	if day != nil {
		q += ` AND DATE(start_at)=?`
		args = append(args, day.Format("2006-01-02"))
	}
	q += ` ORDER BY start_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// FutureClaimedBookings lists the worker's PLANNED and CONFIRMED
// bookings starting after the given instant.
func (r *BookingRepo) FutureClaimedBookings(ctx context.Context, workerID uint64, after time.Time) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE worker_id=? AND status IN ('PLANNED','CONFIRMED') AND start_at > ?
		 ORDER BY start_at, id`,
		workerID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// WorkerClaims returns the worker's claiming bookings and active
// sessions overlapping [from, to), across all sites.
func (r *BookingRepo) WorkerClaims(ctx context.Context, workerID uint64, from, to time.Time) ([]schedule.Claim, error) {
	return workerClaims(ctx, r.db, workerID, from, to)
}

func workerClaims(ctx context.Context, q querier, workerID uint64, from, to time.Time) ([]schedule.Claim, error) {
	var out []schedule.Claim

	rows, err := q.QueryContext(ctx,
		`SELECT id, start_at, end_at FROM bookings
		 WHERE worker_id=? AND status IN ('PLANNED','CONFIRMED')
		   AND start_at < ? AND end_at > ?`,
		workerID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id         uint64
			start, end time.Time
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, err
		}
		e := end
		out = append(out, schedule.Claim{
			Kind: schedule.OccupantBooking, RefID: id, WorkerID: workerID,
			StartAt: start, EndAt: &e,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// An active session has no end yet and overlaps everything after
	// its start.
	srows, err := q.QueryContext(ctx,
		`SELECT id, start_at FROM attendance_sessions
		 WHERE worker_id=? AND status='ACTIVE' AND start_at < ?`,
		workerID, to)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			id    uint64
			start time.Time
		)
		if err := srows.Scan(&id, &start); err != nil {
			return nil, err
		}
		out = append(out, schedule.Claim{
			Kind: schedule.OccupantAttendance, RefID: id, WorkerID: workerID,
			StartAt: start,
		})
	}
	return out, srows.Err()
}

func collectBookings(rows *sql.Rows) ([]*model.Booking, error) {
	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		slotID sql.NullInt64
		reason sql.NullString
	)
	err := row.Scan(&b.ID, &b.WorkerID, &b.SiteID, &slotID, &b.StartAt,
		&b.EndAt, &b.Rate, &b.Status, &b.NotificationSent, &reason,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		id := uint64(slotID.Int64)
		b.SlotID = &id
	}
	if reason.Valid {
		s := reason.String
		b.CancelReason = &s
	}
	return &b, nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

const sessionColumns = `id, worker_id, site_id, slot_id, booking_id,
	start_at, end_at, planned_start_at, status, start_lat, start_lon,
	end_lat, end_lon, rate, total_hours, total_payment, was_planned,
	created_at, updated_at`

// AttendanceRepo manages persistence for attendance sessions.
type AttendanceRepo struct{ db *sql.DB }

func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// SessionByID returns the session or nil when it does not exist.
func (r *AttendanceRepo) SessionByID(ctx context.Context, id uint64) (*model.AttendanceSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions WHERE id=? LIMIT 1`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ActiveSessionForWorker returns the worker's single open session, or
// nil when the worker is clocked out.
func (r *AttendanceRepo) ActiveSessionForWorker(ctx context.Context, workerID uint64) (*model.AttendanceSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions
		 WHERE worker_id=? AND status='ACTIVE'
		 ORDER BY start_at DESC LIMIT 1`, workerID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ActiveSessions lists every open session, oldest first.  The idle
// sweeper iterates this.
func (r *AttendanceRepo) ActiveSessions(ctx context.Context) ([]*model.AttendanceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions
		 WHERE status='ACTIVE' ORDER BY start_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SessionsByWorker lists the worker's sessions, newest start first.
func (r *AttendanceRepo) SessionsByWorker(ctx context.Context, workerID uint64) ([]*model.AttendanceSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM attendance_sessions
		 WHERE worker_id=? ORDER BY start_at DESC, id DESC`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// CreateSession inserts an ACTIVE session and populates its generated ID.
func (r *AttendanceRepo) CreateSession(ctx context.Context, s *model.AttendanceSession) error {
	const q = `INSERT INTO attendance_sessions
		(worker_id, site_id, slot_id, booking_id, start_at, planned_start_at,
		 status, start_lat, start_lon, rate, was_planned)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		s.WorkerID, s.SiteID, nullableID(s.SlotID), nullableID(s.BookingID),
		s.StartAt, nullableTime(s.PlannedStartAt), s.Status,
		s.StartLat, s.StartLon, s.Rate, s.WasPlanned)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CompleteSession writes end time, coordinates and totals, guarded on
// the row still being ACTIVE.  It reports whether a row changed; a
// racing double-close finds zero rows and changes nothing.
func (r *AttendanceRepo) CompleteSession(ctx context.Context, s *model.AttendanceSession) (bool, error) {
	const q = `UPDATE attendance_sessions SET
		end_at=?, end_lat=?, end_lon=?, total_hours=?, total_payment=?, status=?
		WHERE id=? AND status='ACTIVE'`
	res, err := r.db.ExecContext(ctx, q,
		nullableTime(s.EndAt), nullableFloat(s.EndLat), nullableFloat(s.EndLon),
		nullableDecimal(s.TotalHours), nullableDecimal(s.TotalPayment),
		s.Status, s.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func collectSessions(rows *sql.Rows) ([]*model.AttendanceSession, error) {
	var out []*model.AttendanceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*model.AttendanceSession, error) {
	var (
		s            model.AttendanceSession
		slotID       sql.NullInt64
		bookingID    sql.NullInt64
		endAt        sql.NullTime
		plannedStart sql.NullTime
		endLat       sql.NullFloat64
		endLon       sql.NullFloat64
		hours        decimal.NullDecimal
		payment      decimal.NullDecimal
	)
	err := row.Scan(&s.ID, &s.WorkerID, &s.SiteID, &slotID, &bookingID,
		&s.StartAt, &endAt, &plannedStart, &s.Status, &s.StartLat,
		&s.StartLon, &endLat, &endLon, &s.Rate, &hours, &payment,
		&s.WasPlanned, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		id := uint64(slotID.Int64)
		s.SlotID = &id
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		s.BookingID = &id
	}
	if endAt.Valid {
		t := endAt.Time
		s.EndAt = &t
	}
	if plannedStart.Valid {
		t := plannedStart.Time
		s.PlannedStartAt = &t
	}
	if endLat.Valid {
		v := endLat.Float64
		s.EndLat = &v
	}
	if endLon.Valid {
		v := endLon.Float64
		s.EndLon = &v
	}
	if hours.Valid {
		s.TotalHours = &hours.Decimal
	}
	if payment.Valid {
		s.TotalPayment = &payment.Decimal
	}
	return &s, nil
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

const slotColumns = `id, site_id, slot_date, start_minutes, end_minutes,
	capacity, override_rate, supplementary, is_active, created_at, updated_at`

const dateLayout = "2006-01-02"

// SlotRepo manages persistence for capacity slots.
type SlotRepo struct{ db *sql.DB }

func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// Create inserts a new capacity slot and populates its generated ID.
func (r *SlotRepo) Create(ctx context.Context, s *model.CapacitySlot) error {
	return createSlot(ctx, r.db, s)
}

// CreateRange generates one slot per matching day between from and to
// inclusive, copying the window, capacity and rate from tmpl.  An empty
// weekday set matches every day.  All inserts run in one transaction.
func (r *SlotRepo) CreateRange(ctx context.Context, tmpl *model.CapacitySlot, from, to time.Time, weekdays []time.Weekday) ([]*model.CapacitySlot, error) {
	match := func(d time.Weekday) bool {
		if len(weekdays) == 0 {
			return true
		}
		for _, w := range weekdays {
			if w == d {
				return true
			}
		}
		return false
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

	var out []*model.CapacitySlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !match(day.Weekday()) {
			continue
		}
		slot := *tmpl
		slot.ID = 0
		slot.Date = day
		if err := createSlot(ctx, tx, &slot); err != nil {
			return nil, err
		}
		out = append(out, &slot)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}

func createSlot(ctx context.Context, q querier, s *model.CapacitySlot) error {
	const ins = `INSERT INTO capacity_slots
		(site_id, slot_date, start_minutes, end_minutes, capacity,
		 override_rate, supplementary, is_active)
		VALUES (?,?,?,?,?,?,?,?)`
	res, err := q.ExecContext(ctx, ins,
		s.SiteID, s.Date.Format(dateLayout), s.StartMinutes, s.EndMinutes,
		s.Capacity, nullableDecimal(s.OverrideRate), s.Supplementary, s.IsActive)
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

// Update writes the mutable slot settings.  It reports whether a row
// matched the given ID.
func (r *SlotRepo) Update(ctx context.Context, s *model.CapacitySlot) (bool, error) {
	const q = `UPDATE capacity_slots SET
		start_minutes=?, end_minutes=?, capacity=?, override_rate=?,
		supplementary=?, is_active=?
		WHERE id=?`
	res, err := r.db.ExecContext(ctx, q,
		s.StartMinutes, s.EndMinutes, s.Capacity,
		nullableDecimal(s.OverrideRate), s.Supplementary, s.IsActive, s.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Deactivate soft-deletes a slot.  Slots referenced by bookings or
// sessions are never removed from the table.
func (r *SlotRepo) Deactivate(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE capacity_slots SET is_active=0 WHERE id=? AND is_active=1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SlotByID returns the slot or nil when it does not exist.
func (r *SlotRepo) SlotByID(ctx context.Context, id uint64) (*model.CapacitySlot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM capacity_slots WHERE id=? LIMIT 1`, id)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SlotsByDate lists a site's active slots on the given calendar date,
// ordered by start time.
func (r *SlotRepo) SlotsByDate(ctx context.Context, siteID uint64, date time.Time) ([]*model.CapacitySlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM capacity_slots
		 WHERE site_id=? AND slot_date=? AND is_active=1
		 ORDER BY start_minutes, id`,
		siteID, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.CapacitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SlotOccupants returns every claiming booking and active session
// overlapping the slot on its date, projected onto slot-local minutes.
func (r *SlotRepo) SlotOccupants(ctx context.Context, site *model.Site, slot *model.CapacitySlot) ([]schedule.Occupant, error) {
	return slotOccupants(ctx, r.db, site, slot)
}

// slotOccupants is shared with the booking repository, which re-reads
// occupancy inside the reservation transaction.
func slotOccupants(ctx context.Context, q querier, site *model.Site, slot *model.CapacitySlot) ([]schedule.Occupant, error) {
	loc := site.TimeLocation()
	dayStart := model.AtDate(slot.Date, 0, loc)
	dayEnd := model.AtDate(slot.Date, 24*60, loc)

	var out []schedule.Occupant

	rows, err := q.QueryContext(ctx,
		`SELECT id, worker_id, start_at, end_at FROM bookings
		 WHERE site_id=? AND status IN ('PLANNED','CONFIRMED')
		   AND (slot_id IS NULL OR slot_id=?)
		   AND start_at < ? AND end_at > ?`,
		site.ID, slot.ID, dayEnd, dayStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, workerID uint64
			start, end   time.Time
		)
		if err := rows.Scan(&id, &workerID, &start, &end); err != nil {
			return nil, err
		}
		span, ok := schedule.LocalSpan(slot, loc, start, &end)
		if !ok {
			continue
		}
		out = append(out, schedule.Occupant{
			Kind: schedule.OccupantBooking, RefID: id, WorkerID: workerID, Span: span,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Active sessions are open-ended; they occupy through the slot end.
	srows, err := q.QueryContext(ctx,
		`SELECT id, worker_id, start_at FROM attendance_sessions
		 WHERE site_id=? AND status='ACTIVE'
		   AND (slot_id IS NULL OR slot_id=?)
		   AND start_at < ?`,
		site.ID, slot.ID, dayEnd)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			id, workerID uint64
			start        time.Time
		)
		if err := srows.Scan(&id, &workerID, &start); err != nil {
			return nil, err
		}
		span, ok := schedule.LocalSpan(slot, loc, start, nil)
		if !ok {
			continue
		}
		out = append(out, schedule.Occupant{
			Kind: schedule.OccupantAttendance, RefID: id, WorkerID: workerID, Span: span,
		})
	}
	return out, srows.Err()
}

func scanSlot(row rowScanner) (*model.CapacitySlot, error) {
	var (
		s    model.CapacitySlot
		rate decimal.NullDecimal
	)
	err := row.Scan(&s.ID, &s.SiteID, &s.Date, &s.StartMinutes, &s.EndMinutes,
		&s.Capacity, &rate, &s.Supplementary, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rate.Valid {
		s.OverrideRate = &rate.Decimal
	}
	return &s, nil
}

func nullableDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}

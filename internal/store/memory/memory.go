// Package memory provides an in-memory implementation of the service
// store interfaces.  It backs the service and sweeper tests and is
// handy for local development without a database.  Reservation locking
// is a single mutex, which gives the same serialization guarantee the
// MySQL repositories get from row locks.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
	"github.com/fieldcrew/shiftpoint/internal/service"
)

// Store holds all records in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	sites    map[uint64]*model.Site
	units    map[uint64]*model.OrgUnit
	slots    map[uint64]*model.CapacitySlot
	bookings map[uint64]*model.Booking
	sessions map[uint64]*model.AttendanceSession
	auths    map[uint64]*model.Authorization

	nextBookingID uint64
	nextSessionID uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sites:    make(map[uint64]*model.Site),
		units:    make(map[uint64]*model.OrgUnit),
		slots:    make(map[uint64]*model.CapacitySlot),
		bookings: make(map[uint64]*model.Booking),
		sessions: make(map[uint64]*model.AttendanceSession),
		auths:    make(map[uint64]*model.Authorization),
	}
}

// Compile-time checks that Store satisfies the service contracts.
var (
	_ service.SiteStore          = (*Store)(nil)
	_ service.SlotStore          = (*Store)(nil)
	_ service.BookingStore       = (*Store)(nil)
	_ service.AttendanceStore    = (*Store)(nil)
	_ service.AuthorizationStore = (*Store)(nil)
)

// Seed helpers.  They overwrite any record with the same ID.

func (s *Store) PutSite(site *model.Site)            { s.mu.Lock(); s.sites[site.ID] = site; s.mu.Unlock() }
func (s *Store) PutOrgUnit(u *model.OrgUnit)         { s.mu.Lock(); s.units[u.ID] = u; s.mu.Unlock() }
func (s *Store) PutSlot(slot *model.CapacitySlot)    { s.mu.Lock(); s.slots[slot.ID] = slot; s.mu.Unlock() }
func (s *Store) PutAuthorization(a *model.Authorization) {
	s.mu.Lock()
	s.auths[a.ID] = a
	s.mu.Unlock()
}
func (s *Store) PutBooking(b *model.Booking) {
	s.mu.Lock()
	if b.ID == 0 {
		s.nextBookingID++
		b.ID = s.nextBookingID
	} else if b.ID > s.nextBookingID {
		s.nextBookingID = b.ID
	}
	s.bookings[b.ID] = b
	s.mu.Unlock()
}
func (s *Store) PutSession(sess *model.AttendanceSession) {
	s.mu.Lock()
	if sess.ID == 0 {
		s.nextSessionID++
		sess.ID = s.nextSessionID
	} else if sess.ID > s.nextSessionID {
		s.nextSessionID = sess.ID
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// SiteByID implements service.SiteStore.
func (s *Store) SiteByID(_ context.Context, id uint64) (*model.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sites[id], nil
}

// OrgUnitChain implements service.SiteStore.
func (s *Store) OrgUnitChain(_ context.Context, unitID uint64) (map[uint64]*model.OrgUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]*model.OrgUnit)
	next := &unitID
	for next != nil {
		u, ok := s.units[*next]
		if !ok {
			break
		}
		if _, seen := out[u.ID]; seen {
			break
		}
		out[u.ID] = u
		next = u.ParentID
	}
	return out, nil
}

// SlotByID implements service.SlotStore.
func (s *Store) SlotByID(_ context.Context, id uint64) (*model.CapacitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id], nil
}

// SlotsByDate implements service.SlotStore.
func (s *Store) SlotsByDate(_ context.Context, siteID uint64, date time.Time) ([]*model.CapacitySlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.CapacitySlot
	for _, slot := range s.slots {
		if slot.SiteID == siteID && sameDate(slot.Date, date) {
			out = append(out, slot)
		}
	}
	return out, nil
}

// SlotOccupants implements service.SlotStore.
func (s *Store) SlotOccupants(_ context.Context, site *model.Site, slot *model.CapacitySlot) ([]schedule.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotOccupantsLocked(site, slot), nil
}

func (s *Store) slotOccupantsLocked(site *model.Site, slot *model.CapacitySlot) []schedule.Occupant {
	loc := site.TimeLocation()
	var out []schedule.Occupant
	for _, b := range s.bookings {
		if b.SiteID != slot.SiteID || !b.Claims() {
			continue
		}
		if b.SlotID != nil && *b.SlotID != slot.ID {
			continue
		}
		span, ok := schedule.LocalSpan(slot, loc, b.StartAt, &b.EndAt)
		if !ok {
			continue
		}
		out = append(out, schedule.Occupant{
			Kind: schedule.OccupantBooking, RefID: b.ID, WorkerID: b.WorkerID, Span: span,
		})
	}
	for _, sess := range s.sessions {
		if sess.SiteID != slot.SiteID || sess.Status != model.SessionActive {
			continue
		}
		if sess.SlotID != nil && *sess.SlotID != slot.ID {
			continue
		}
		span, ok := schedule.LocalSpan(slot, loc, sess.StartAt, sess.EndAt)
		if !ok {
			continue
		}
		out = append(out, schedule.Occupant{
			Kind: schedule.OccupantAttendance, RefID: sess.ID, WorkerID: sess.WorkerID, Span: span,
		})
	}
	return out
}

// BookingByID implements service.BookingStore.
func (s *Store) BookingByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id], nil
}

// ReserveInSlot implements service.BookingStore.  The store mutex is
// held across read-decide-insert, so concurrent reservations serialize
// exactly like they would behind a row lock.
func (s *Store) ReserveInSlot(_ context.Context, booking *model.Booking, site *model.Site, slot *model.CapacitySlot, decide service.DecideFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupants := s.slotOccupantsLocked(site, slot)
	claims := s.workerClaimsLocked(booking.WorkerID, booking.StartAt, booking.EndAt)
	if err := decide(occupants, claims); err != nil {
		return err
	}
	s.nextBookingID++
	booking.ID = s.nextBookingID
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	s.bookings[booking.ID] = &cp
	return nil
}

// SetBookingStatus implements service.BookingStore.
func (s *Store) SetBookingStatus(_ context.Context, id uint64, from []string, to string, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			b.CancelReason = reason
			b.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

// MarkBookingNotified implements service.BookingStore.
func (s *Store) MarkBookingNotified(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.NotificationSent = true
		b.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// BookingsByWorker implements service.BookingStore.
func (s *Store) BookingsByWorker(_ context.Context, workerID uint64) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.bookings {
		if b.WorkerID == workerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// FutureClaimedBookings implements service.BookingStore.
func (s *Store) FutureClaimedBookings(_ context.Context, workerID uint64, after time.Time) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.bookings {
		if b.WorkerID == workerID && b.Claims() && b.StartAt.After(after) {
			out = append(out, b)
		}
	}
	return out, nil
}

// WorkerClaims implements service.BookingStore.
func (s *Store) WorkerClaims(_ context.Context, workerID uint64, from, to time.Time) ([]schedule.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workerClaimsLocked(workerID, from, to), nil
}

func (s *Store) workerClaimsLocked(workerID uint64, from, to time.Time) []schedule.Claim {
	var out []schedule.Claim
	for _, b := range s.bookings {
		if b.WorkerID != workerID || !b.Claims() {
			continue
		}
		if b.StartAt.Before(to) && from.Before(b.EndAt) {
			end := b.EndAt
			out = append(out, schedule.Claim{
				Kind: schedule.OccupantBooking, RefID: b.ID, WorkerID: workerID,
				StartAt: b.StartAt, EndAt: &end,
			})
		}
	}
	for _, sess := range s.sessions {
		if sess.WorkerID != workerID || sess.Status != model.SessionActive {
			continue
		}
		// Open-ended: overlaps anything not entirely before it starts.
		if sess.StartAt.Before(to) {
			out = append(out, schedule.Claim{
				Kind: schedule.OccupantAttendance, RefID: sess.ID, WorkerID: workerID,
				StartAt: sess.StartAt,
			})
		}
	}
	return out
}

// SessionByID implements service.AttendanceStore.  Like the other
// session reads it returns a copy; the MySQL repository hands out rows
// scanned into fresh structs, and callers mutate the returned session
// before writing it back through CompleteSession.
func (s *Store) SessionByID(_ context.Context, id uint64) (*model.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.sessions[id]), nil
}

// ActiveSessionForWorker implements service.AttendanceStore.
func (s *Store) ActiveSessionForWorker(_ context.Context, workerID uint64) (*model.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.WorkerID == workerID && sess.Status == model.SessionActive {
			return copySession(sess), nil
		}
	}
	return nil, nil
}

// ActiveSessions implements service.AttendanceStore.
func (s *Store) ActiveSessions(_ context.Context) ([]*model.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AttendanceSession
	for _, sess := range s.sessions {
		if sess.Status == model.SessionActive {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

// SessionsByWorker implements service.AttendanceStore.
func (s *Store) SessionsByWorker(_ context.Context, workerID uint64) ([]*model.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AttendanceSession
	for _, sess := range s.sessions {
		if sess.WorkerID == workerID {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

// CreateSession implements service.AttendanceStore.
func (s *Store) CreateSession(_ context.Context, sess *model.AttendanceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSessionID++
	sess.ID = s.nextSessionID
	sess.CreatedAt = time.Now().UTC()
	sess.UpdatedAt = sess.CreatedAt
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// CompleteSession implements service.AttendanceStore.  The update is
// conditional on the stored row still being ACTIVE, regardless of what
// status the caller's struct carries.
func (s *Store) CompleteSession(_ context.Context, sess *model.AttendanceSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok || stored.Status != model.SessionActive {
		return false, nil
	}
	next := copySession(sess)
	next.Status = model.SessionCompleted
	next.UpdatedAt = time.Now().UTC()
	s.sessions[sess.ID] = next
	return true, nil
}

// ActiveAuthorizationsForWorker implements service.AuthorizationStore.
func (s *Store) ActiveAuthorizationsForWorker(_ context.Context, workerID uint64, at time.Time) ([]*model.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Authorization
	for _, a := range s.auths {
		if a.WorkerID != workerID || a.Status != model.AuthorizationActive {
			continue
		}
		if at.Before(a.ValidFrom) || at.After(a.ValidUntil) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func copySession(sess *model.AttendanceSession) *model.AttendanceSession {
	if sess == nil {
		return nil
	}
	c := *sess
	return &c
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}


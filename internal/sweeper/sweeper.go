// Package sweeper reconciles idle attendance sessions: any active
// session past its deadline is force-closed at that deadline, capping
// runaway duration and pay when workers forget to clock out.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/service"
)

const lockKey = "shiftpoint:sweeper:leader"

// Locker provides cross-instance mutual exclusion so only one sweeper
// runs at a time.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// RedisLocker implements Locker with SET NX / DEL.
type RedisLocker struct {
	Client *redis.Client
}

// Acquire takes the lock when it is free.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release drops the lock early.  The TTL still bounds a crashed holder.
func (l *RedisLocker) Release(ctx context.Context, key string) {
	_ = l.Client.Del(ctx, key).Err()
}

// Sweeper periodically force-closes overdue sessions through the same
// close transition the handlers use.
type Sweeper struct {
	Attendance *service.AttendanceService
	Sessions   service.AttendanceStore
	Sites      service.SiteStore
	Slots      service.SlotStore
	Locker     Locker // nil disables distribution locking (tests, single instance)
	Log        *zap.Logger
	Interval   time.Duration
	Now        func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return 5 * time.Minute
	}
	return s.Interval
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.Log.Error("sweep failed", zap.Error(err))
			} else if n > 0 {
				s.Log.Info("sweep closed overdue sessions", zap.Int("closed", n))
			}
		}
	}
}

// SweepOnce closes every active session whose deadline has elapsed and
// returns how many were closed.  It is idempotent: completed sessions
// are filtered out by the active-only query, and the close transition
// itself refuses non-active sessions, so a racing second sweeper does
// no double work.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.Locker != nil {
		ok, err := s.Locker.Acquire(ctx, lockKey, s.interval())
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		defer s.Locker.Release(ctx, lockKey)
	}

	sessions, err := s.Sessions.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	closed := 0
	for _, sess := range sessions {
		deadline, err := s.deadline(ctx, sess)
		if err != nil {
			s.Log.Warn("deadline computation failed",
				zap.Uint64("session_id", sess.ID), zap.Error(err))
			continue
		}
		if now.Before(deadline) {
			continue
		}
		// Close at the deadline, not at now: a delayed sweep must not
		// inflate hours or pay.
		if _, err := s.Attendance.CloseSessionAt(ctx, sess, deadline, nil, true); err != nil {
			var state *service.StateError
			if errors.As(err, &state) {
				continue // lost a race to another closer, nothing to do
			}
			s.Log.Warn("forced close failed",
				zap.Uint64("session_id", sess.ID), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

// deadline is the instant past which the session counts as idle: the
// linked slot's end in site-local time plus the site's auto-close grace,
// or the site's closing time on the session's start date plus the same
// grace when no slot is linked.
func (s *Sweeper) deadline(ctx context.Context, sess *model.AttendanceSession) (time.Time, error) {
	site, err := s.Sites.SiteByID(ctx, sess.SiteID)
	if err != nil {
		return time.Time{}, err
	}
	if site == nil {
		return time.Time{}, &service.NotFoundError{Kind: "site", ID: sess.SiteID}
	}
	loc := site.TimeLocation()
	grace := time.Duration(site.AutoCloseGraceMin) * time.Minute

	if sess.SlotID != nil {
		slot, err := s.Slots.SlotByID(ctx, *sess.SlotID)
		if err != nil {
			return time.Time{}, err
		}
		if slot != nil {
			return slot.EndAt(loc).Add(grace), nil
		}
	}
	startDate, _ := model.MinutesOfDay(sess.StartAt, loc)
	return model.AtDate(startDate, site.CloseMinutes, loc).Add(grace), nil
}

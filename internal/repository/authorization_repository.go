package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

const authorizationColumns = `id, worker_id, owner_id, rate, rate_override,
	valid_from, valid_until, status, created_at`

// AuthorizationRepo manages persistence for site access grants.
type AuthorizationRepo struct{ db *sql.DB }

func NewAuthorizationRepo(db *sql.DB) *AuthorizationRepo {
	return &AuthorizationRepo{db: db}
}

// Create inserts a grant and its covered sites in one transaction.
func (r *AuthorizationRepo) Create(ctx context.Context, a *model.Authorization) error {
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

	res, err := tx.ExecContext(ctx,
		`INSERT INTO authorizations
		 (worker_id, owner_id, rate, rate_override, valid_from, valid_until, status)
		 VALUES (?,?,?,?,?,?,?)`,
		a.WorkerID, a.OwnerID, a.Rate, a.RateOverride,
		a.ValidFrom, a.ValidUntil, a.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)

	for _, siteID := range a.SiteIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO authorization_sites (authorization_id, site_id) VALUES (?,?)`,
			a.ID, siteID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AuthorizationByID returns the grant with its covered sites, or nil
// when it does not exist.
func (r *AuthorizationRepo) AuthorizationByID(ctx context.Context, id uint64) (*model.Authorization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+authorizationColumns+` FROM authorizations WHERE id=? LIMIT 1`, id)
	a, err := scanAuthorization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSites(ctx, []*model.Authorization{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// ActiveAuthorizationsForWorker returns the worker's grants valid at
// the given instant, newest first.  Rate resolution depends on this
// ordering.
func (r *AuthorizationRepo) ActiveAuthorizationsForWorker(ctx context.Context, workerID uint64, at time.Time) ([]*model.Authorization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+authorizationColumns+` FROM authorizations
		 WHERE worker_id=? AND status='ACTIVE' AND valid_from <= ? AND valid_until >= ?
		 ORDER BY created_at DESC, id DESC`,
		workerID, at, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Authorization
	for rows.Next() {
		a, err := scanAuthorization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadSites(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Terminate flips an ACTIVE grant to TERMINATED.  It reports whether a
// row changed; callers run the booking cancellation cascade only on a
// real transition.
func (r *AuthorizationRepo) Terminate(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE authorizations SET status='TERMINATED' WHERE id=? AND status='ACTIVE'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// loadSites fills SiteIDs for every given grant with one query.
func (r *AuthorizationRepo) loadSites(ctx context.Context, auths []*model.Authorization) error {
	if len(auths) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Authorization, len(auths))
	args := make([]any, 0, len(auths))
	for _, a := range auths {
		byID[a.ID] = a
		args = append(args, a.ID)
	}
	q := `SELECT authorization_id, site_id FROM authorization_sites
	      WHERE authorization_id IN (?` + strings.Repeat(",?", len(auths)-1) + `)
	      ORDER BY site_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var authID, siteID uint64
		if err := rows.Scan(&authID, &siteID); err != nil {
			return err
		}
		if a, ok := byID[authID]; ok {
			a.SiteIDs = append(a.SiteIDs, siteID)
		}
	}
	return rows.Err()
}

func scanAuthorization(row rowScanner) (*model.Authorization, error) {
	var a model.Authorization
	err := row.Scan(&a.ID, &a.WorkerID, &a.OwnerID, &a.Rate, &a.RateOverride,
		&a.ValidFrom, &a.ValidUntil, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

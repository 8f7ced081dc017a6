package repository

import (
	"context"
	"database/sql"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so query helpers can
// run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const siteColumns = `id, owner_id, org_unit_id, name, latitude, longitude,
	open_minutes, close_minutes, base_rate, geofence_radius_m,
	auto_close_grace_min, lateness_grace_min, timezone, is_active,
	created_at, updated_at`

// SiteRepo manages persistence for sites and org units.
type SiteRepo struct{ db *sql.DB }

func NewSiteRepo(db *sql.DB) *SiteRepo { return &SiteRepo{db: db} }

// Create inserts a new site and populates its generated ID.
func (r *SiteRepo) Create(ctx context.Context, s *model.Site) error {
	const q = `INSERT INTO sites
		(owner_id, org_unit_id, name, latitude, longitude, open_minutes,
		 close_minutes, base_rate, geofence_radius_m, auto_close_grace_min,
		 lateness_grace_min, timezone, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		s.OwnerID, nullableID(s.OrgUnitID), s.Name, s.Latitude, s.Longitude,
		s.OpenMinutes, s.CloseMinutes, s.BaseRate, s.GeofenceRadiusM,
		s.AutoCloseGraceMin, nullableInt(s.LatenessGraceMin), s.Timezone,
		s.IsActive)
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

// Update writes the mutable site settings.  It reports whether a row
// matched the given ID.
func (r *SiteRepo) Update(ctx context.Context, s *model.Site) (bool, error) {
	const q = `UPDATE sites SET
		org_unit_id=?, name=?, latitude=?, longitude=?, open_minutes=?,
		close_minutes=?, base_rate=?, geofence_radius_m=?,
		auto_close_grace_min=?, lateness_grace_min=?, timezone=?, is_active=?
		WHERE id=?`
	res, err := r.db.ExecContext(ctx, q,
		nullableID(s.OrgUnitID), s.Name, s.Latitude, s.Longitude,
		s.OpenMinutes, s.CloseMinutes, s.BaseRate, s.GeofenceRadiusM,
		s.AutoCloseGraceMin, nullableInt(s.LatenessGraceMin), s.Timezone,
		s.IsActive, s.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Deactivate soft-deletes a site.  Existing bookings and sessions keep
// referencing it.
func (r *SiteRepo) Deactivate(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sites SET is_active=0 WHERE id=? AND is_active=1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SiteByID returns the site or nil when it does not exist.
func (r *SiteRepo) SiteByID(ctx context.Context, id uint64) (*model.Site, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id=? LIMIT 1`, id)
	s, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SitesByOwner lists every site registered by the given owner, newest
// first.
func (r *SiteRepo) SitesByOwner(ctx context.Context, ownerID uint64) ([]*model.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE owner_id=? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ActiveSites lists every active site, for worker-facing browsing.
func (r *SiteRepo) ActiveSites(ctx context.Context) ([]*model.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE is_active=1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// OrgUnitChain walks parent links from the given unit and returns every
// unit reached, keyed by ID.  The walk is capped to guard against
// cyclic data.
func (r *SiteRepo) OrgUnitChain(ctx context.Context, unitID uint64) (map[uint64]*model.OrgUnit, error) {
	chain := make(map[uint64]*model.OrgUnit)
	next := &unitID
	for hops := 0; next != nil && hops < 32; hops++ {
		if _, seen := chain[*next]; seen {
			break
		}
		var (
			u        model.OrgUnit
			parentID sql.NullInt64
			grace    sql.NullInt64
		)
		err := r.db.QueryRowContext(ctx,
			`SELECT id, parent_id, name, lateness_grace_min FROM org_units WHERE id=? LIMIT 1`,
			*next).Scan(&u.ID, &parentID, &u.Name, &grace)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, err
		}
		if parentID.Valid {
			p := uint64(parentID.Int64)
			u.ParentID = &p
		}
		if grace.Valid {
			g := int(grace.Int64)
			u.LatenessGraceMin = &g
		}
		chain[u.ID] = &u
		next = u.ParentID
	}
	return chain, nil
}

// CreateOrgUnit inserts an org unit and populates its generated ID.
func (r *SiteRepo) CreateOrgUnit(ctx context.Context, u *model.OrgUnit) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO org_units (parent_id, name, lateness_grace_min) VALUES (?,?,?)`,
		nullableID(u.ParentID), u.Name, nullableInt(u.LatenessGraceMin))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSite(row rowScanner) (*model.Site, error) {
	var (
		s       model.Site
		orgUnit sql.NullInt64
		grace   sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.OwnerID, &orgUnit, &s.Name, &s.Latitude,
		&s.Longitude, &s.OpenMinutes, &s.CloseMinutes, &s.BaseRate,
		&s.GeofenceRadiusM, &s.AutoCloseGraceMin, &grace, &s.Timezone,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if orgUnit.Valid {
		id := uint64(orgUnit.Int64)
		s.OrgUnitID = &id
	}
	if grace.Valid {
		g := int(grace.Int64)
		s.LatenessGraceMin = &g
	}
	return &s, nil
}

func nullableID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

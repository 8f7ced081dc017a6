package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/geo"
)

// DefaultLatenessGraceMin applies when neither a site nor any org unit in
// its ownership chain configures a lateness grace.
const DefaultLatenessGraceMin = 15

// Site is a physical work location with a geofence and a working-hours
// window.  Sites are never hard-deleted; deactivation hides them from
// booking and attendance while preserving history.
//
// Fields:
//  ID               – primary key identifier.
//  OwnerID          – administrator user who manages the site.
//  OrgUnitID        – optional organizational unit the site belongs to.
//  Name             – human-readable site name.
//  Latitude         – registered latitude of the site.
//  Longitude        – registered longitude of the site.
//  OpenMinutes      – local opening time, minutes from midnight.
//  CloseMinutes     – local closing time, minutes from midnight
//                     (must be greater than OpenMinutes).
//  BaseRate         – mandatory hourly rate floor for the site.
//  GeofenceRadiusM  – maximum allowed distance for clock-in/out, meters.
//  AutoCloseGraceMin – minutes past a slot/site end before the sweeper
//                     force-closes an idle session.
//  LatenessGraceMin – optional lateness grace; nil inherits from the
//                     org unit chain.
//  Timezone         – IANA timezone name all local times are read in.
//  IsActive         – soft-deactivation flag.
type Site struct {
	ID                uint64          // sites.id
	OwnerID           uint64          // sites.owner_id
	OrgUnitID         *uint64         // sites.org_unit_id (nullable)
	Name              string          // sites.name
	Latitude          float64         // sites.latitude
	Longitude         float64         // sites.longitude
	OpenMinutes       int             // sites.open_minutes
	CloseMinutes      int             // sites.close_minutes
	BaseRate          decimal.Decimal // sites.base_rate
	GeofenceRadiusM   float64         // sites.geofence_radius_m
	AutoCloseGraceMin int             // sites.auto_close_grace_min
	LatenessGraceMin  *int            // sites.lateness_grace_min (nullable)
	Timezone          string          // sites.timezone
	IsActive          bool            // sites.is_active
	CreatedAt         time.Time       // sites.created_at
	UpdatedAt         time.Time       // sites.updated_at
}

// Location returns the site's registered coordinates.
func (s *Site) Location() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

// TimeLocation loads the site's IANA timezone, falling back to UTC when
// the name cannot be resolved.
func (s *Site) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OrgUnit is a node in the ownership chain above sites.  Settings not
// fixed on a site are inherited by walking up this chain.
type OrgUnit struct {
	ID               uint64  // org_units.id
	ParentID         *uint64 // org_units.parent_id (nullable)
	Name             string  // org_units.name
	LatenessGraceMin *int    // org_units.lateness_grace_min (nullable)
}

// ResolveLatenessGrace walks site -> org unit -> parent units and returns
// the first explicitly configured lateness grace.  unitsByID must contain
// every unit in the chain; a missing or cyclic chain falls through to the
// default.
func ResolveLatenessGrace(site *Site, unitsByID map[uint64]*OrgUnit) int {
	if site.LatenessGraceMin != nil {
		return *site.LatenessGraceMin
	}
	next := site.OrgUnitID
	for hops := 0; next != nil && hops < 32; hops++ {
		unit, ok := unitsByID[*next]
		if !ok {
			break
		}
		if unit.LatenessGraceMin != nil {
			return *unit.LatenessGraceMin
		}
		next = unit.ParentID
	}
	return DefaultLatenessGraceMin
}

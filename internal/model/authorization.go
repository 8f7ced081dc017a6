package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Authorization statuses.
const (
	AuthorizationActive     = "ACTIVE"
	AuthorizationTerminated = "TERMINATED"
)

// Authorization grants a worker access to a set of sites for a validity
// window, optionally carrying its own hourly rate.  The engine only reads
// authorizations; their lifecycle is managed elsewhere, except that
// termination triggers the booking cancellation cascade.
//
// Fields:
//  ID           – primary key identifier.
//  WorkerID     – worker the grant applies to.
//  OwnerID      – party that issued the grant.
//  Rate         – contract hourly rate (may be zero when unused).
//  RateOverride – when set and Rate is nonzero, the contract rate wins
//                 over slot and site rates.
//  SiteIDs      – sites the grant covers.
//  ValidFrom    – start of the validity window.
//  ValidUntil   – end of the validity window.
//  Status       – ACTIVE or TERMINATED.
type Authorization struct {
	ID           uint64          // authorizations.id
	WorkerID     uint64          // authorizations.worker_id
	OwnerID      uint64          // authorizations.owner_id
	Rate         decimal.Decimal // authorizations.rate
	RateOverride bool            // authorizations.rate_override
	SiteIDs      []uint64        // authorization_sites.site_id rows
	ValidFrom    time.Time       // authorizations.valid_from
	ValidUntil   time.Time       // authorizations.valid_until
	Status       string          // authorizations.status
	CreatedAt    time.Time       // authorizations.created_at
}

// Covers reports whether the authorization grants access to the site.
func (a *Authorization) Covers(siteID uint64) bool {
	for _, id := range a.SiteIDs {
		if id == siteID {
			return true
		}
	}
	return false
}

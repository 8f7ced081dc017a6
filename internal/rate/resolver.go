// Package rate resolves the effective hourly rate for a worked interval
// from up to three candidate sources.  Resolution never fails: the site
// base rate is a mandatory floor, so a misconfigured zero rate surfaces as
// a zero payment rather than an error.
package rate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

// Tier identifies which source produced the effective rate.  It exists
// for audit output only and must not drive control flow.
type Tier string

const (
	TierContract Tier = "CONTRACT"
	TierSlot     Tier = "SLOT"
	TierSite     Tier = "SITE"
)

// Resolution carries the effective rate and the tier that supplied it.
type Resolution struct {
	Rate decimal.Decimal
	Tier Tier
}

// source tries to produce a rate; ok is false when the source does not
// apply.  Sources are tried in priority order, first success wins.
type source func() (decimal.Decimal, bool)

// Resolve picks the effective hourly rate for work at site, optionally
// inside slot, given every authorization the worker holds that covers the
// site.  Priority: contract rate when its override flag is set and the
// rate is nonzero, then the slot override rate, then the site base rate.
func Resolve(site *model.Site, slot *model.CapacitySlot, auths []*model.Authorization) Resolution {
	chain := []struct {
		tier Tier
		src  source
	}{
		{TierContract, func() (decimal.Decimal, bool) {
			a := pickAuthorization(auths)
			if a == nil {
				return decimal.Zero, false
			}
			return a.Rate, true
		}},
		{TierSlot, func() (decimal.Decimal, bool) {
			if slot == nil || slot.OverrideRate == nil {
				return decimal.Zero, false
			}
			return *slot.OverrideRate, true
		}},
		{TierSite, func() (decimal.Decimal, bool) {
			return site.BaseRate, true
		}},
	}
	for _, c := range chain {
		if r, ok := c.src(); ok {
			return Resolution{Rate: r, Tier: c.tier}
		}
	}
	// Unreachable: the site source always succeeds.
	return Resolution{Rate: site.BaseRate, Tier: TierSite}
}

// pickAuthorization selects the authorization whose rate may override:
// override-enabled with a nonzero rate, most recently created first so
// selection does not depend on store ordering.
func pickAuthorization(auths []*model.Authorization) *model.Authorization {
	eligible := make([]*model.Authorization, 0, len(auths))
	for _, a := range auths {
		if a.RateOverride && a.Rate.IsPositive() {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
		}
		return eligible[i].ID > eligible[j].ID
	})
	return eligible[0]
}

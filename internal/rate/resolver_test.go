package rate_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/rate"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func site(base int64) *model.Site {
	return &model.Site{ID: 1, BaseRate: d(base)}
}

func slotWithOverride(v int64) *model.CapacitySlot {
	r := d(v)
	return &model.CapacitySlot{ID: 7, SiteID: 1, OverrideRate: &r}
}

func auth(id uint64, rateVal int64, override bool, created time.Time) *model.Authorization {
	return &model.Authorization{
		ID:           id,
		Rate:         d(rateVal),
		RateOverride: override,
		Status:       model.AuthorizationActive,
		CreatedAt:    created,
	}
}

func TestResolvePriorityChain(t *testing.T) {
	now := time.Now()

	t.Run("contract override beats slot and site", func(t *testing.T) {
		res := rate.Resolve(site(300), slotWithOverride(350),
			[]*model.Authorization{auth(1, 800, true, now)})
		assert.True(t, d(800).Equal(res.Rate))
		assert.Equal(t, rate.TierContract, res.Tier)
	})

	t.Run("override flag without nonzero rate is skipped", func(t *testing.T) {
		res := rate.Resolve(site(300), slotWithOverride(350),
			[]*model.Authorization{auth(1, 0, true, now)})
		assert.True(t, d(350).Equal(res.Rate))
		assert.Equal(t, rate.TierSlot, res.Tier)
	})

	t.Run("nonzero rate without override flag is skipped", func(t *testing.T) {
		res := rate.Resolve(site(300), slotWithOverride(350),
			[]*model.Authorization{auth(1, 800, false, now)})
		assert.True(t, d(350).Equal(res.Rate))
		assert.Equal(t, rate.TierSlot, res.Tier)
	})

	t.Run("slot override beats site base", func(t *testing.T) {
		res := rate.Resolve(site(300), slotWithOverride(350), nil)
		assert.True(t, d(350).Equal(res.Rate))
		assert.Equal(t, rate.TierSlot, res.Tier)
	})

	t.Run("site base is the floor", func(t *testing.T) {
		res := rate.Resolve(site(300), nil, nil)
		assert.True(t, d(300).Equal(res.Rate))
		assert.Equal(t, rate.TierSite, res.Tier)
	})

	t.Run("zero site rate resolves rather than errors", func(t *testing.T) {
		res := rate.Resolve(site(0), nil, nil)
		assert.True(t, res.Rate.IsZero())
		assert.Equal(t, rate.TierSite, res.Tier)
	})
}

func TestResolveAuthorizationTieBreak(t *testing.T) {
	now := time.Now()
	older := auth(1, 500, true, now.Add(-time.Hour))
	newer := auth(2, 650, true, now)

	// Most recently created eligible authorization wins, regardless of
	// the order the store returned them in.
	res := rate.Resolve(site(300), nil, []*model.Authorization{older, newer})
	assert.True(t, d(650).Equal(res.Rate))

	res = rate.Resolve(site(300), nil, []*model.Authorization{newer, older})
	assert.True(t, d(650).Equal(res.Rate))

	// Equal creation times fall back to the higher ID.
	tied := auth(3, 700, true, now)
	res = rate.Resolve(site(300), nil, []*model.Authorization{newer, tied})
	assert.True(t, d(700).Equal(res.Rate))
}

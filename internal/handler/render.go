package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

// Response DTOs.  Models stay tag-free; the wire shapes live here.

type siteResp struct {
	ID                uint64          `json:"id"`
	Name              string          `json:"name"`
	OrgUnitID         *uint64         `json:"org_unit_id,omitempty"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	Open              string          `json:"open"`
	Close             string          `json:"close"`
	BaseRate          decimal.Decimal `json:"base_rate"`
	GeofenceRadiusM   float64         `json:"geofence_radius_m"`
	AutoCloseGraceMin int             `json:"auto_close_grace_min"`
	LatenessGraceMin  *int            `json:"lateness_grace_min,omitempty"`
	Timezone          string          `json:"timezone"`
	IsActive          bool            `json:"is_active"`
}

func toSiteResp(s *model.Site) siteResp {
	return siteResp{
		ID:                s.ID,
		Name:              s.Name,
		OrgUnitID:         s.OrgUnitID,
		Latitude:          s.Latitude,
		Longitude:         s.Longitude,
		Open:              model.FormatClock(s.OpenMinutes),
		Close:             model.FormatClock(s.CloseMinutes),
		BaseRate:          s.BaseRate,
		GeofenceRadiusM:   s.GeofenceRadiusM,
		AutoCloseGraceMin: s.AutoCloseGraceMin,
		LatenessGraceMin:  s.LatenessGraceMin,
		Timezone:          s.Timezone,
		IsActive:          s.IsActive,
	}
}

type slotResp struct {
	ID            uint64           `json:"id"`
	SiteID        uint64           `json:"site_id"`
	Date          string           `json:"date"`
	Start         string           `json:"start"`
	End           string           `json:"end"`
	Capacity      int              `json:"capacity"`
	OverrideRate  *decimal.Decimal `json:"override_rate,omitempty"`
	Supplementary bool             `json:"supplementary"`
	IsActive      bool             `json:"is_active"`
}

func toSlotResp(s *model.CapacitySlot) slotResp {
	return slotResp{
		ID:            s.ID,
		SiteID:        s.SiteID,
		Date:          s.Date.Format("2006-01-02"),
		Start:         model.FormatClock(s.StartMinutes),
		End:           model.FormatClock(s.EndMinutes),
		Capacity:      s.Capacity,
		OverrideRate:  s.OverrideRate,
		Supplementary: s.Supplementary,
		IsActive:      s.IsActive,
	}
}

type bookingResp struct {
	ID           uint64          `json:"id"`
	SiteID       uint64          `json:"site_id"`
	SlotID       *uint64         `json:"slot_id,omitempty"`
	StartAt      time.Time       `json:"start_at"`
	EndAt        time.Time       `json:"end_at"`
	Rate         decimal.Decimal `json:"rate"`
	Status       string          `json:"status"`
	CancelReason *string         `json:"cancel_reason,omitempty"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{
		ID:           b.ID,
		SiteID:       b.SiteID,
		SlotID:       b.SlotID,
		StartAt:      b.StartAt,
		EndAt:        b.EndAt,
		Rate:         b.Rate,
		Status:       b.Status,
		CancelReason: b.CancelReason,
	}
}

type sessionResp struct {
	ID             uint64           `json:"id"`
	SiteID         uint64           `json:"site_id"`
	SlotID         *uint64          `json:"slot_id,omitempty"`
	BookingID      *uint64          `json:"booking_id,omitempty"`
	StartAt        time.Time        `json:"start_at"`
	EndAt          *time.Time       `json:"end_at,omitempty"`
	PlannedStartAt *time.Time       `json:"planned_start_at,omitempty"`
	Status         string           `json:"status"`
	Rate           decimal.Decimal  `json:"rate"`
	TotalHours     *decimal.Decimal `json:"total_hours,omitempty"`
	TotalPayment   *decimal.Decimal `json:"total_payment,omitempty"`
	WasPlanned     bool             `json:"was_planned"`
	Late           bool             `json:"late"`
}

func toSessionResp(s *model.AttendanceSession) sessionResp {
	return sessionResp{
		ID:             s.ID,
		SiteID:         s.SiteID,
		SlotID:         s.SlotID,
		BookingID:      s.BookingID,
		StartAt:        s.StartAt,
		EndAt:          s.EndAt,
		PlannedStartAt: s.PlannedStartAt,
		Status:         s.Status,
		Rate:           s.Rate,
		TotalHours:     s.TotalHours,
		TotalPayment:   s.TotalPayment,
		WasPlanned:     s.WasPlanned,
		Late:           s.Late(),
	}
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/repository"
)

// AdminSlotHandler exposes capacity slot management to admins.
type AdminSlotHandler struct {
	Sites *repository.SiteRepo
	Slots *repository.SlotRepo
}

func NewAdminSlotHandler(sites *repository.SiteRepo, slots *repository.SlotRepo) *AdminSlotHandler {
	return &AdminSlotHandler{Sites: sites, Slots: slots}
}

type slotReq struct {
	Date          string           `json:"date" validate:"required"`
	Start         string           `json:"start" validate:"required"`
	End           string           `json:"end" validate:"required"`
	Capacity      int              `json:"capacity" validate:"min=0"`
	OverrideRate  *decimal.Decimal `json:"override_rate"`
	Supplementary bool             `json:"supplementary"`
}

func (req *slotReq) toSlot(siteID uint64) (*model.CapacitySlot, error) {
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseClock(req.End)
	if err != nil {
		return nil, err
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 1
	}
	return &model.CapacitySlot{
		SiteID:        siteID,
		Date:          date,
		StartMinutes:  start,
		EndMinutes:    end,
		Capacity:      capacity,
		OverrideRate:  req.OverrideRate,
		Supplementary: req.Supplementary,
		IsActive:      true,
	}, nil
}

func validSlotWindow(site *model.Site, slot *model.CapacitySlot) string {
	if slot.EndMinutes <= slot.StartMinutes {
		return "end must be after start"
	}
	if slot.OverrideRate != nil && !slot.OverrideRate.IsPositive() {
		return "override_rate must be positive"
	}
	inside := slot.StartMinutes >= site.OpenMinutes && slot.EndMinutes <= site.CloseMinutes
	if !slot.Supplementary && !inside {
		return "slot must sit inside working hours unless supplementary"
	}
	return ""
}

// Create adds one capacity slot to an owned site.
// POST /v1/admin/sites/:id/slots
func (h *AdminSlotHandler) Create(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil || site == nil {
		return err
	}
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	slot, err := req.toSlot(site.ID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if msg := validSlotWindow(site, slot); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if err := h.Slots.Create(c.Request().Context(), slot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slot failed"})
	}
	return c.JSON(http.StatusCreated, toSlotResp(slot))
}

type bulkSlotReq struct {
	From          string           `json:"from" validate:"required"`
	To            string           `json:"to" validate:"required"`
	Weekdays      []int            `json:"weekdays" validate:"dive,min=0,max=6"`
	Start         string           `json:"start" validate:"required"`
	End           string           `json:"end" validate:"required"`
	Capacity      int              `json:"capacity" validate:"min=0"`
	OverrideRate  *decimal.Decimal `json:"override_rate"`
	Supplementary bool             `json:"supplementary"`
}

// CreateBulk generates a slot per matching day over a date range.
// Weekdays use 0=Sunday; an empty list matches every day.
// POST /v1/admin/sites/:id/slots/bulk
func (h *AdminSlotHandler) CreateBulk(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil || site == nil {
		return err
	}
	var req bulkSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	from, err := time.ParseInLocation("2006-01-02", req.From, time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
	}
	to, err := time.ParseInLocation("2006-01-02", req.To, time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be YYYY-MM-DD"})
	}
	if to.Before(from) || to.Sub(from) > 366*24*time.Hour {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "range must be ascending and at most a year"})
	}

	tmpl, err := (&slotReq{
		Date: req.From, Start: req.Start, End: req.End,
		Capacity: req.Capacity, OverrideRate: req.OverrideRate,
		Supplementary: req.Supplementary,
	}).toSlot(site.ID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if msg := validSlotWindow(site, tmpl); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, d := range req.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}

	slots, err := h.Slots.CreateRange(c.Request().Context(), tmpl, from, to, weekdays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bulk create failed"})
	}
	out := make([]slotResp, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResp(s))
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(out), "slots": out})
}

// Update rewrites a slot's window, capacity and rate.
// PUT /v1/admin/slots/:id
func (h *AdminSlotHandler) Update(c echo.Context) error {
	site, slot, err := h.ownedSlot(c)
	if err != nil || slot == nil {
		return err
	}
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	end, err := model.ParseClock(req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	slot.StartMinutes = start
	slot.EndMinutes = end
	if req.Capacity > 0 {
		slot.Capacity = req.Capacity
	}
	slot.OverrideRate = req.OverrideRate
	slot.Supplementary = req.Supplementary
	if msg := validSlotWindow(site, slot); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if _, err := h.Slots.Update(c.Request().Context(), slot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update slot failed"})
	}
	return c.JSON(http.StatusOK, toSlotResp(slot))
}

// Deactivate soft-deletes a slot.  Bookings referencing it survive.
// DELETE /v1/admin/slots/:id
func (h *AdminSlotHandler) Deactivate(c echo.Context) error {
	_, slot, err := h.ownedSlot(c)
	if err != nil || slot == nil {
		return err
	}
	changed, err := h.Slots.Deactivate(c.Request().Context(), slot.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	if !changed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot already inactive"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "INACTIVE"})
}

// List returns an owned site's slots on one date.
// GET /v1/admin/sites/:id/slots?date=2026-03-14
func (h *AdminSlotHandler) List(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil || site == nil {
		return err
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	slots, err := h.Slots.SlotsByDate(c.Request().Context(), site.ID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]slotResp, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

func (h *AdminSlotHandler) ownedSite(c echo.Context) (*model.Site, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site id"})
	}
	site, err := h.Sites.SiteByID(c.Request().Context(), id)
	if err != nil {
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if site == nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
	}
	if site.OwnerID != middleware.UserID(c) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return site, nil
}

func (h *AdminSlotHandler) ownedSlot(c echo.Context) (*model.Site, *model.CapacitySlot, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	slot, err := h.Slots.SlotByID(c.Request().Context(), id)
	if err != nil {
		return nil, nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if slot == nil {
		return nil, nil, c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	}
	site, err := h.Sites.SiteByID(c.Request().Context(), slot.SiteID)
	if err != nil {
		return nil, nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if site == nil || site.OwnerID != middleware.UserID(c) {
		return nil, nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return site, slot, nil
}

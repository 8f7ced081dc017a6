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

// AdminSiteHandler exposes site and org-unit management to admins.
type AdminSiteHandler struct {
	Sites    *repository.SiteRepo
	Bookings *repository.BookingRepo
}

func NewAdminSiteHandler(s *repository.SiteRepo, b *repository.BookingRepo) *AdminSiteHandler {
	return &AdminSiteHandler{Sites: s, Bookings: b}
}

type siteReq struct {
	Name              string          `json:"name" validate:"required,min=2"`
	OrgUnitID         *uint64         `json:"org_unit_id"`
	Latitude          float64         `json:"latitude" validate:"min=-90,max=90"`
	Longitude         float64         `json:"longitude" validate:"min=-180,max=180"`
	Open              string          `json:"open" validate:"required"`
	Close             string          `json:"close" validate:"required"`
	BaseRate          decimal.Decimal `json:"base_rate"`
	GeofenceRadiusM   float64         `json:"geofence_radius_m" validate:"gt=0"`
	AutoCloseGraceMin int             `json:"auto_close_grace_min" validate:"min=0"`
	LatenessGraceMin  *int            `json:"lateness_grace_min"`
	Timezone          string          `json:"timezone" validate:"required"`
}

// apply validates the request and copies it onto the site.
func (req *siteReq) apply(s *model.Site) error {
	open, err := model.ParseClock(req.Open)
	if err != nil {
		return err
	}
	closeMin, err := model.ParseClock(req.Close)
	if err != nil {
		return err
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return err
	}
	s.Name = req.Name
	s.OrgUnitID = req.OrgUnitID
	s.Latitude = req.Latitude
	s.Longitude = req.Longitude
	s.OpenMinutes = open
	s.CloseMinutes = closeMin
	s.BaseRate = req.BaseRate
	s.GeofenceRadiusM = req.GeofenceRadiusM
	s.AutoCloseGraceMin = req.AutoCloseGraceMin
	s.LatenessGraceMin = req.LatenessGraceMin
	s.Timezone = req.Timezone
	return nil
}

// Create registers a new site owned by the caller.
// POST /v1/admin/sites
func (h *AdminSiteHandler) Create(c echo.Context) error {
	var req siteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	site := &model.Site{OwnerID: middleware.UserID(c), IsActive: true}
	if err := req.apply(site); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if site.CloseMinutes <= site.OpenMinutes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "close must be after open"})
	}
	if !req.BaseRate.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "base_rate must be positive"})
	}

	if err := h.Sites.Create(c.Request().Context(), site); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create site failed"})
	}
	return c.JSON(http.StatusCreated, toSiteResp(site))
}

// Update rewrites a site's settings.  Only the owner may update.
// PUT /v1/admin/sites/:id
func (h *AdminSiteHandler) Update(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil {
		return err
	}
	if site == nil {
		return nil // response already written
	}
	var req siteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := req.apply(site); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if site.CloseMinutes <= site.OpenMinutes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "close must be after open"})
	}

	if _, err := h.Sites.Update(c.Request().Context(), site); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update site failed"})
	}
	return c.JSON(http.StatusOK, toSiteResp(site))
}

// Deactivate soft-deletes a site.  Only the owner may deactivate.
// DELETE /v1/admin/sites/:id
func (h *AdminSiteHandler) Deactivate(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil {
		return err
	}
	if site == nil {
		return nil
	}
	changed, err := h.Sites.Deactivate(c.Request().Context(), site.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	if !changed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "site already inactive"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "INACTIVE"})
}

// List returns the caller's sites.
// GET /v1/admin/sites
func (h *AdminSiteHandler) List(c echo.Context) error {
	sites, err := h.Sites.SitesByOwner(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]siteResp, 0, len(sites))
	for _, s := range sites {
		out = append(out, toSiteResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"sites": out})
}

// ListBookings returns bookings at one of the caller's sites, optionally
// narrowed to a date.
// GET /v1/admin/sites/:id/bookings?date=YYYY-MM-DD
func (h *AdminSiteHandler) ListBookings(c echo.Context) error {
	site, err := h.ownedSite(c)
	if err != nil {
		return err
	}
	if site == nil {
		return nil
	}
	var day *time.Time
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
		}
		day = &d
	}
	bookings, err := h.Bookings.BookingsBySite(c.Request().Context(), site.ID, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

type orgUnitReq struct {
	Name             string  `json:"name" validate:"required,min=2"`
	ParentID         *uint64 `json:"parent_id"`
	LatenessGraceMin *int    `json:"lateness_grace_min"`
}

// CreateOrgUnit registers an org unit in the settings-inheritance tree.
// POST /v1/admin/org-units
func (h *AdminSiteHandler) CreateOrgUnit(c echo.Context) error {
	var req orgUnitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	unit := &model.OrgUnit{
		Name:             req.Name,
		ParentID:         req.ParentID,
		LatenessGraceMin: req.LatenessGraceMin,
	}
	if err := h.Sites.CreateOrgUnit(c.Request().Context(), unit); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create org unit failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":                 unit.ID,
		"name":               unit.Name,
		"parent_id":          unit.ParentID,
		"lateness_grace_min": unit.LatenessGraceMin,
	})
}

// ownedSite loads the :id site and enforces ownership.  On failure it
// writes the response and returns (nil, nil).
func (h *AdminSiteHandler) ownedSite(c echo.Context) (*model.Site, error) {
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

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
	"github.com/fieldcrew/shiftpoint/internal/service"
)

// AdminAuthorizationHandler manages worker site-access grants.
// Terminating a grant runs the booking cancellation cascade.
type AdminAuthorizationHandler struct {
	Auths  *repository.AuthorizationRepo
	Access *service.AccessService
}

func NewAdminAuthorizationHandler(a *repository.AuthorizationRepo, access *service.AccessService) *AdminAuthorizationHandler {
	return &AdminAuthorizationHandler{Auths: a, Access: access}
}

type createAuthorizationReq struct {
	WorkerID     uint64          `json:"worker_id" validate:"required"`
	SiteIDs      []uint64        `json:"site_ids" validate:"required,min=1"`
	Rate         decimal.Decimal `json:"rate"`
	RateOverride bool            `json:"rate_override"`
	ValidFrom    time.Time       `json:"valid_from" validate:"required"`
	ValidUntil   time.Time       `json:"valid_until" validate:"required"`
}

// Create issues a grant covering the given sites.
// POST /v1/admin/authorizations
func (h *AdminAuthorizationHandler) Create(c echo.Context) error {
	var req createAuthorizationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !req.ValidUntil.After(req.ValidFrom) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid_until must follow valid_from"})
	}
	if req.RateOverride && !req.Rate.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rate_override requires a positive rate"})
	}

	auth := &model.Authorization{
		WorkerID:     req.WorkerID,
		OwnerID:      middleware.UserID(c),
		Rate:         req.Rate,
		RateOverride: req.RateOverride,
		SiteIDs:      req.SiteIDs,
		ValidFrom:    req.ValidFrom.UTC(),
		ValidUntil:   req.ValidUntil.UTC(),
		Status:       model.AuthorizationActive,
	}
	if err := h.Auths.Create(c.Request().Context(), auth); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create authorization failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": auth.ID, "status": auth.Status})
}

type terminateAuthorizationReq struct {
	// Cutoff cancels every future booking after this instant regardless
	// of site, on top of the lost-site cascade.
	Cutoff *time.Time `json:"cutoff"`
}

// Terminate flips the grant to TERMINATED and cancels the worker's
// future bookings on sites no other active grant still covers.
// POST /v1/admin/authorizations/:id/terminate
func (h *AdminAuthorizationHandler) Terminate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid authorization id"})
	}
	var req terminateAuthorizationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx := c.Request().Context()
	auth, err := h.Auths.AuthorizationByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if auth == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "authorization not found"})
	}
	if auth.OwnerID != middleware.UserID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	changed, err := h.Auths.Terminate(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "terminate failed"})
	}
	if !changed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "authorization already terminated"})
	}
	auth.Status = model.AuthorizationTerminated

	cancelled, err := h.Access.OnAuthorizationTerminated(ctx, auth, req.Cutoff)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cascade failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":             model.AuthorizationTerminated,
		"cancelled_bookings": cancelled,
	})
}

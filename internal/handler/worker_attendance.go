package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldcrew/shiftpoint/internal/geo"
	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/service"
)

// WorkerAttendanceHandler exposes geofenced clock-in and clock-out to
// authenticated workers.
type WorkerAttendanceHandler struct {
	Attendance *service.AttendanceService
}

func NewWorkerAttendanceHandler(a *service.AttendanceService) *WorkerAttendanceHandler {
	return &WorkerAttendanceHandler{Attendance: a}
}

type openSessionReq struct {
	SiteID    uint64  `json:"site_id" validate:"required"`
	BookingID *uint64 `json:"booking_id"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Open clocks the caller in at a site.  Coordinates must fall inside
// the site geofence; a booking_id links the session to a planned
// booking.
// POST /v1/worker/attendance
func (h *WorkerAttendanceHandler) Open(c echo.Context) error {
	var req openSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	session, err := h.Attendance.OpenSession(c.Request().Context(),
		middleware.UserID(c), req.SiteID,
		geo.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		req.BookingID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(session))
}

type closeSessionReq struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Close clocks the caller out.  The response carries the rounded totals
// and the lateness flag.
// POST /v1/worker/attendance/:id/close
func (h *WorkerAttendanceHandler) Close(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req closeSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Attendance.CloseSession(c.Request().Context(),
		middleware.UserID(c), id,
		geo.Point{Latitude: req.Latitude, Longitude: req.Longitude})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(result.Session))
}

// List returns the caller's sessions, newest start first.
// GET /v1/worker/attendance
func (h *WorkerAttendanceHandler) List(c echo.Context) error {
	sessions, err := h.Attendance.ListSessions(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]sessionResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

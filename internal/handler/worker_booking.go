package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/service"
)

// WorkerBookingHandler exposes availability queries and booking
// lifecycle to authenticated workers.
type WorkerBookingHandler struct {
	Bookings *service.BookingService
}

func NewWorkerBookingHandler(b *service.BookingService) *WorkerBookingHandler {
	return &WorkerBookingHandler{Bookings: b}
}

// Availability returns the per-slot free/occupied picture for a site on
// one date.
// GET /v1/worker/sites/:id/availability?date=2026-03-14
func (h *WorkerBookingHandler) Availability(c echo.Context) error {
	siteID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site id"})
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	slots, err := h.Bookings.GetAvailability(c.Request().Context(), siteID, date)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"site_id": siteID,
		"date":    date.Format("2006-01-02"),
		"slots":   slots,
	})
}

type createBookingReq struct {
	SlotID  uint64    `json:"slot_id" validate:"required"`
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
}

// Create books a sub-interval of a capacity slot for the caller.
// POST /v1/worker/bookings
func (h *WorkerBookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	booking, err := h.Bookings.CreateBooking(c.Request().Context(),
		middleware.UserID(c), req.SlotID, req.StartAt.UTC(), req.EndAt.UTC())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(booking))
}

// Cancel cancels the caller's own booking, subject to the cutoff.
// DELETE /v1/worker/bookings/:id
func (h *WorkerBookingHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Bookings.CancelBooking(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "CANCELLED"})
}

// List returns the caller's bookings, newest start first.
// GET /v1/worker/bookings
func (h *WorkerBookingHandler) List(c echo.Context) error {
	bookings, err := h.Bookings.ListBookings(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/fieldcrew/shiftpoint/internal/handler"
	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/model"
)

// RegisterWorker registers the worker-scoped endpoints: availability
// browsing, booking lifecycle and geofenced attendance.  Availability
// reads are wrapped by the optional response cache; the extra
// middleware (rate limiter, cache) may be nil.
func RegisterWorker(e *echo.Echo, bookings *handler.WorkerBookingHandler, attendance *handler.WorkerAttendanceHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleWorker, model.RoleAdmin),
	}
	for _, m := range extra {
		if m != nil {
			mw = append(mw, m)
		}
	}
	g := e.Group("/v1/worker", mw...)

	g.GET("/sites/:id/availability", bookings.Availability)
	g.GET("/bookings", bookings.List)
	g.POST("/bookings", bookings.Create)
	g.DELETE("/bookings/:id", bookings.Cancel)

	g.GET("/attendance", attendance.List)
	g.POST("/attendance", attendance.Open)
	g.POST("/attendance/:id/close", attendance.Close)
}

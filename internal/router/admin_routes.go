package router

import (
	"github.com/labstack/echo/v4"

	"github.com/fieldcrew/shiftpoint/internal/handler"
	"github.com/fieldcrew/shiftpoint/internal/middleware"
	"github.com/fieldcrew/shiftpoint/internal/model"
)

// RegisterAdmin registers site, slot and authorization management.
// Every route requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, sites *handler.AdminSiteHandler, slots *handler.AdminSlotHandler, auths *handler.AdminAuthorizationHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	for _, m := range extra {
		if m != nil {
			mw = append(mw, m)
		}
	}
	g := e.Group("/v1/admin", mw...)

	g.GET("/sites", sites.List)
	g.POST("/sites", sites.Create)
	g.PUT("/sites/:id", sites.Update)
	g.DELETE("/sites/:id", sites.Deactivate)
	g.GET("/sites/:id/bookings", sites.ListBookings)
	g.POST("/org-units", sites.CreateOrgUnit)

	g.GET("/sites/:id/slots", slots.List)
	g.POST("/sites/:id/slots", slots.Create)
	g.POST("/sites/:id/slots/bulk", slots.CreateBulk)
	g.PUT("/slots/:id", slots.Update)
	g.DELETE("/slots/:id", slots.Deactivate)

	g.POST("/authorizations", auths.Create)
	g.POST("/authorizations/:id/terminate", auths.Terminate)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fieldcrew/shiftpoint/internal/service"
)

// validate checks request DTO constraints declared via struct tags.
var validate = validator.New()

// writeServiceError maps the service failure taxonomy onto HTTP
// responses.  Validation problems come back as 400 with the violation
// codes, collisions as 409 with the full conflict list, geofence
// rejections as 422 with the measured distance, and precondition
// failures as 409.
func writeServiceError(c echo.Context, err error) error {
	var (
		ve *service.ValidationError
		ce *service.ConflictError
		ge *service.GeofenceError
		se *service.StateError
		ne *service.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Message}
		if len(ve.Violations) > 0 {
			body["violations"] = ve.Violations
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ce):
		body := echo.Map{"error": ce.Message}
		if len(ce.Conflicts) > 0 {
			body["conflicts"] = ce.Conflicts
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &ge):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":               "outside geofence",
			"distance_meters":     ge.DistanceMeters,
			"max_distance_meters": ge.MaxDistanceMeters,
		})
	case errors.As(err, &se):
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Reason})
	case errors.As(err, &ne):
		return c.JSON(http.StatusNotFound, echo.Map{"error": ne.Error()})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

package handler

import (
	"errors"
	"net/http"

	"taskmanager/internal/middleware"
	"taskmanager/internal/model"
	"taskmanager/pkg/util"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto status codes. what names the resource
// in the 404 message. Server-side failures are attached to the context for
// the request logger; their details never reach the client.
func writeError(c *gin.Context, err error, what string) {
	var verr *model.ValidationError
	var pwe *model.PartialWriteError

	switch {
	case errors.As(err, &pwe):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			"Role claim was updated but the stored role was not; the two stores have diverged", pwe.UID))
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(verr.Message, verr.Field))
	case errors.Is(err, util.ErrInvalidID):
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid "+what+" ID format", ""))
	case errors.Is(err, model.ErrUnauthenticated), errors.Is(err, model.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse("Authentication required", ""))
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, model.NewErrorResponse("Access denied", ""))
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, model.NewErrorResponse(what+" not found", ""))
	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, model.NewErrorResponse(what+" already exists", ""))
	case errors.Is(err, model.ErrProvider):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, model.NewErrorResponse("Identity provider request failed", ""))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse("Server error", ""))
	}
}

// mustActor returns the reconciled caller or writes a 401.
func mustActor(c *gin.Context) (*model.User, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse("Authentication required", ""))
		return nil, false
	}
	return actor, true
}

// descending reads ?order=asc|desc; newest first unless asked otherwise.
func descending(c *gin.Context) bool {
	return c.DefaultQuery("order", "desc") != "asc"
}

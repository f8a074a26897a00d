package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terrasiaga/coordination/internal/cerr"
)

// writeError maps the engine error taxonomy to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		validation   *cerr.ValidationError
		geo          *cerr.GeoIndexError
		transition   *cerr.InvalidTransition
		insufficient *cerr.InsufficientResource
		noCapacity   *cerr.NoCapacityAvailable
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &geo):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cerr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transition), errors.Is(err, cerr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &noCapacity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

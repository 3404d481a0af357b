package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vncorchestrator/internal/access"
)

var ErrMissingID = errors.New("missing id parameter")
var ErrRecordNotFound = errors.New("no record for that client id")

func respondError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// mapServiceError maps the Access Service's sentinel errors to HTTP status
// codes exactly once, at the boundary.
func mapServiceError(err error) int {
	switch {
	case errors.Is(err, access.ErrMissingClientID), errors.Is(err, ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, access.ErrCapacityExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, access.ErrCreationFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

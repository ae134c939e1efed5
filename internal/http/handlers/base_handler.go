// README: Base handler utilities (JSON helpers, id checks, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/middleware"
	"carpool/internal/types"
)

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// isValidID ensures IDs are alphanumeric and at most 32 chars (matches the ID generator).
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return true
}

// pathID reads the :id param and writes a 400 if it is malformed.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func caller(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps the error taxonomy onto status codes; unknown errors never leak details.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		writeError(c, http.StatusBadRequest, types.Message(err))
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, types.Message(err))
	case errors.Is(err, types.ErrForbidden):
		writeError(c, http.StatusForbidden, types.Message(err))
	case errors.Is(err, types.ErrState):
		writeError(c, http.StatusConflict, types.Message(err))
	case errors.Is(err, types.ErrConflict):
		writeJSON(c, http.StatusConflict, errorResponse{Error: types.Message(err), Retryable: true})
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/resumetailor/internal/compile"
	"github.com/amishk599/resumetailor/internal/model"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func abort(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error: errorBody{Code: code, Message: message, Details: details},
	})
}

// fail maps a domain error onto an HTTP status and error code.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		missing *model.MissingInputError
		failed  *model.RequestFailedError
		compErr *compile.CompileError
	)
	switch {
	case errors.As(err, &missing):
		abort(c, http.StatusBadRequest, "missing_input", err.Error(), gin.H{"field": missing.Field})
	case errors.As(err, &failed):
		details := gin.H{}
		if failed.StatusCode != 0 {
			details["status"] = failed.StatusCode
		}
		abort(c, http.StatusBadGateway, "request_failed", failed.Message, details)
	case errors.Is(err, model.ErrEmptyGeneration):
		abort(c, http.StatusBadGateway, "empty_generation", err.Error(), nil)
	case errors.As(err, &compErr):
		abort(c, http.StatusUnprocessableEntity, "compile_failed", "document did not compile", gin.H{"log": compErr.Log})
	case errors.Is(err, model.ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		abort(c, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}

func badRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, "invalid_request", message, nil)
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

// Error codes returned in the body of failed requests
const (
	CodeValidationFailed    = "validation_failed"
	CodeNotFound            = "not_found"
	CodeUnauthorized        = "unauthorized"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeAnalysisFailed      = "analysis_failed"
	CodeInvalidRequest      = "invalid_request"
	CodeInternal            = "internal_error"
)

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// ErrorHandler maps domain errors onto HTTP statuses
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.WithContext(c.Request().Context()).Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.String("code", body.Code),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("failed to write error response", zap.Error(err))
		}
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var (
		validation  *domain.ValidationError
		upstream    *domain.UpstreamFetchError
		computation *domain.ComputationError
		httpErr     *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Error: validation.Message, Code: CodeValidationFailed, Field: validation.Field}
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNotFound}
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, ErrorResponse{Error: "transaction store unavailable", Code: CodeUpstreamUnavailable}
	case errors.As(err, &computation):
		return http.StatusInternalServerError, ErrorResponse{Error: "analysis failed", Code: CodeAnalysisFailed}
	case errors.As(err, &httpErr):
		return httpErr.Code, ErrorResponse{Error: fmt.Sprint(httpErr.Message), Code: codeForStatus(httpErr.Code)}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusNotFound:
		return CodeNotFound
	case status >= http.StatusInternalServerError:
		return CodeInternal
	default:
		return CodeInvalidRequest
	}
}

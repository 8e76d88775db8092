package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/campus-connect/backend/internal/middleware"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

// StatusOf maps an error code to its HTTP status
func StatusOf(code apperrors.Code) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeAlreadyExists, apperrors.CodeFailedPrecondition:
		return http.StatusConflict
	case apperrors.CodeDataAccess:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// httpError converts a service error into the echo error the client sees
func httpError(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Error("Unhandled error", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	status := StatusOf(appErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Path(), "code", appErr.Code, "error", err)
	}
	return echo.NewHTTPError(status, echo.Map{
		"success": false,
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// currentUser returns the authenticated user id or a 401
func currentUser(c echo.Context) (string, error) {
	id := middleware.UserID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

// bindAndValidate decodes the body into req and runs the echo validator
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

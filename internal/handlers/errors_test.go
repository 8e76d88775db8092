package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.CodeValidation, http.StatusBadRequest},
		{apperrors.CodeUnauthorized, http.StatusUnauthorized},
		{apperrors.CodeForbidden, http.StatusForbidden},
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeAlreadyExists, http.StatusConflict},
		{apperrors.CodeFailedPrecondition, http.StatusConflict},
		{apperrors.CodeDataAccess, http.StatusServiceUnavailable},
		{apperrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.code))
		})
	}
}

func TestHTTPError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	var he *echo.HTTPError
	require.True(t, errors.As(httpError(c, apperrors.ErrNotConnected), &he))
	assert.Equal(t, http.StatusForbidden, he.Code)
	body, ok := he.Message.(echo.Map)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeForbidden, body["code"])
	assert.Equal(t, false, body["success"])

	wrapped := apperrors.DataAccess(errors.New("connection reset"), "failed to load messages")
	require.True(t, errors.As(httpError(c, wrapped), &he))
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)

	require.True(t, errors.As(httpError(c, errors.New("boom")), &he))
	assert.Equal(t, http.StatusInternalServerError, he.Code)

	passthrough := echo.NewHTTPError(http.StatusTeapot, "short and stout")
	assert.Same(t, passthrough, httpError(c, passthrough))
}

func TestParseID(t *testing.T) {
	e := echo.New()
	for _, raw := range []string{"0", "-1", "abc", ""} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, err := parseID(c, "id")
		assert.Error(t, err, raw)
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := parseID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

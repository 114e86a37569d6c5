package validators

import (
	"net/http"
	"testing"

	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&models.SignInRequest{Email: "a@example.com", Password: "secret"}))

	err := v.Validate(&models.SignInRequest{Email: "nope"})
	require.Error(t, err)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, "email must be a valid email; password is required", httpErr.Message)
}

func TestValidateOneOf(t *testing.T) {
	err := New().Validate(&models.UpdateProjectStatusRequest{Status: "archived"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be one of: open closed")
}

package common_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/parking-drivetime/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		fallbackMsg    string
		expectHandled  bool
		expectStatus   int
		expectContains string
	}{
		{
			name:          "nil error returns false",
			fallbackMsg:   "failed",
			expectHandled: false,
		},
		{
			name:           "AppError is handled",
			err:            common.NewNotFoundError("origin not cached", nil),
			fallbackMsg:    "failed to invalidate",
			expectHandled:  true,
			expectStatus:   http.StatusNotFound,
			expectContains: "origin not cached",
		},
		{
			name:           "wrapped AppError is handled",
			err:            fmt.Errorf("resolve: %w", common.NewBadRequestError("invalid destinations", nil)),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadRequest,
			expectContains: "invalid destinations",
		},
		{
			name:           "regular error uses fallback",
			err:            errors.New("redis down"),
			fallbackMsg:    "failed to resolve driving times",
			expectHandled:  true,
			expectStatus:   http.StatusInternalServerError,
			expectContains: "failed to resolve driving times",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "")

			handled := common.HandleServiceError(c, tt.err, tt.fallbackMsg)
			assert.Equal(t, tt.expectHandled, handled)
			if tt.expectHandled {
				assert.Equal(t, tt.expectStatus, w.Code)
				assert.Contains(t, w.Body.String(), tt.expectContains)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := common.NewBadRequestError("bad", sentinel).WithErrorCode("INVALID_COORDINATE")

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "INVALID_COORDINATE", err.ErrorCode)
	assert.ErrorIs(t, common.NewValidationError("x"), common.ErrValidation)
}

func TestBindJSON(t *testing.T) {
	type payload struct {
		ID string `json:"id" binding:"required"`
	}

	c, _ := newTestContext(http.MethodPost, `{"id":"a"}`)
	var ok payload
	assert.True(t, common.BindJSON(c, &ok))
	assert.Equal(t, "a", ok.ID)

	c, w := newTestContext(http.MethodPost, `{}`)
	var missing payload
	assert.False(t, common.BindJSON(c, &missing))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadinessProbe(t *testing.T) {
	handler := common.ReadinessProbe("drivetime", "test", map[string]common.Check{
		"cache":   func(context.Context) error { return nil },
		"routing": func(context.Context) error { return errors.New("breaker open") },
	})

	c, w := newTestContext(http.MethodGet, "")
	handler(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body common.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, "healthy", body.Checks["cache"].Status)
	assert.Equal(t, "breaker open", body.Checks["routing"].Message)
}

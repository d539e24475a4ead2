package drivetime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/parking-drivetime/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = validation.RegisterGinValidators()
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(svc *Service) *gin.Engine {
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestHandler_Estimate(t *testing.T) {
	svc, _ := newTestService(nil)
	r := setupRouter(svc)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/estimate",
		`{"origin":{"lat":1.3521,"lng":103.8198},"destination":{"lat":1.3521,"lng":103.8198}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var est Estimation
	require.NoError(t, json.Unmarshal(resp.Data, &est))
	assert.Equal(t, 0.0, est.DistanceKm)
	assert.Equal(t, 2, est.DurationMin)
	assert.Equal(t, RouteTypeLocal, est.RouteType)
}

func TestHandler_EstimateValidation(t *testing.T) {
	svc, _ := newTestService(nil)
	r := setupRouter(svc)

	tests := []struct {
		name string
		body string
	}{
		{"missing destination", `{"origin":{"lat":1.3,"lng":103.8}}`},
		{"latitude out of range", `{"origin":{"lat":91,"lng":103.8},"destination":{"lat":1.3,"lng":103.8}}`},
		{"longitude missing", `{"origin":{"lat":1.3},"destination":{"lat":1.3,"lng":103.8}}`},
		{"not json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/estimate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestHandler_Resolve(t *testing.T) {
	router := new(MockRouter)
	svc, _ := newTestService(router)
	r := setupRouter(svc)

	router.On("FetchBatch", mock.Anything, testOrigin, withIDs("a", "b")).
		Return(map[string]Result{"a": {DistanceKm: 1.1, DurationMin: 4}, "b": {DistanceKm: 2.2, DurationMin: 6}}, nil).Once()

	body := `{"origin":{"lat":1.3521,"lng":103.8198},"destinations":[
		{"id":"a","lat":1.30,"lng":103.85},
		{"id":"b","lat":1.31,"lng":103.86}
	]}`
	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/resolve", body)
	require.Equal(t, http.StatusOK, w.Code)

	var out ResolveResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "1.352,103.820", out.OriginKey)
	assert.Equal(t, Result{DistanceKm: 2.2, DurationMin: 6}, out.Results["b"])
	router.AssertExpectations(t)
}

func TestHandler_ResolveRejectsDuplicateIDs(t *testing.T) {
	router := new(MockRouter)
	svc, _ := newTestService(router)
	r := setupRouter(svc)

	body := `{"origin":{"lat":1.3521,"lng":103.8198},"destinations":[
		{"id":"a","lat":1.30,"lng":103.85},
		{"id":"a","lat":1.31,"lng":103.86}
	]}`
	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/resolve", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "invalid destinations")
	router.AssertNotCalled(t, "FetchBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_ResolveRequiresDestinations(t *testing.T) {
	svc, _ := newTestService(nil)
	r := setupRouter(svc)

	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/resolve",
		`{"origin":{"lat":1.3521,"lng":103.8198},"destinations":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_InvalidateCache(t *testing.T) {
	svc, _ := newTestService(nil)
	r := setupRouter(svc)
	require.NoError(t, svc.Cache().Merge(context.Background(), "1.352,103.820", map[string]Result{"a": {DurationMin: 3}}))

	w, resp := doRequest(t, r, http.MethodDelete, "/api/v1/driving-times/cache/1.352,103.820", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = doRequest(t, r, http.MethodDelete, "/api/v1/driving-times/cache/1.352,103.820", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, r, http.MethodDelete, "/api/v1/driving-times/cache/somewhere", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CleanupCache(t *testing.T) {
	svc, _ := newTestService(nil)
	clk := &clock{now: baseTime}
	svc.Cache().now = clk.Now
	r := setupRouter(svc)

	require.NoError(t, svc.Cache().Merge(context.Background(), "1.352,103.820", map[string]Result{"a": {DurationMin: 3}}))
	clk.Advance(25 * time.Hour)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/driving-times/cache/cleanup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, string(resp.Data))
}

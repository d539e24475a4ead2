package drivetime

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/parking-drivetime/pkg/common"
	"github.com/richxcame/parking-drivetime/pkg/geo"
	"github.com/richxcame/parking-drivetime/pkg/validation"
)

// CoordinateRequest is a point in a request body
type CoordinateRequest struct {
	Lat *float64 `json:"lat" binding:"required,latitude"`
	Lng *float64 `json:"lng" binding:"required,longitude"`
}

func (r CoordinateRequest) coordinate() Coordinate {
	return Coordinate{Lat: *r.Lat, Lng: *r.Lng}
}

// EstimateRequest asks for the heuristic estimate of one pair
type EstimateRequest struct {
	Origin      CoordinateRequest `json:"origin" binding:"required"`
	Destination CoordinateRequest `json:"destination" binding:"required"`
}

// DestinationRequest is one destination of a resolve request
type DestinationRequest struct {
	ID  string   `json:"id" binding:"required,max=128"`
	Lat *float64 `json:"lat" binding:"required,latitude"`
	Lng *float64 `json:"lng" binding:"required,longitude"`
}

// ResolveRequest asks for results from one origin to many destinations
type ResolveRequest struct {
	Origin       CoordinateRequest    `json:"origin" binding:"required"`
	Destinations []DestinationRequest `json:"destinations" binding:"required,min=1,max=500,dive"`
}

// ResolveResponse carries one result per requested id
type ResolveResponse struct {
	OriginKey string            `json:"originKey"`
	Results   map[string]Result `json:"results"`
}

// Handler serves the driving-time HTTP API
type Handler struct {
	service *Service
}

// NewHandler creates a new driving-time handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the driving-time routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	dt := rg.Group("/driving-times")
	{
		dt.POST("/estimate", h.Estimate)
		dt.POST("/resolve", h.Resolve)

		dt.DELETE("/cache/:originKey", h.InvalidateCache)
		dt.POST("/cache/cleanup", h.CleanupCache)
	}
}

// Estimate returns the heuristic estimate with its breakdown
func (h *Handler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	est, err := h.service.Analyze(req.Origin.coordinate(), req.Destination.coordinate())
	if common.HandleServiceError(c, mapError(err), "failed to estimate driving time") {
		return
	}

	common.SuccessResponse(c, est)
}

// Resolve returns one result per destination, using the cache and routing service
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if !common.BindJSON(c, &req) {
		return
	}

	origin := req.Origin.coordinate()
	destinations := make([]DestinationPoint, 0, len(req.Destinations))
	for _, d := range req.Destinations {
		destinations = append(destinations, DestinationPoint{
			ID:         d.ID,
			Coordinate: Coordinate{Lat: *d.Lat, Lng: *d.Lng},
		})
	}

	results, err := h.service.ResolveMany(c.Request.Context(), origin, destinations)
	if common.HandleServiceError(c, mapError(err), "failed to resolve driving times") {
		return
	}

	common.SuccessResponse(c, ResolveResponse{
		OriginKey: OriginKey(origin),
		Results:   results,
	})
}

// InvalidateCache drops the cached entry for one origin key
func (h *Handler) InvalidateCache(c *gin.Context) {
	key := c.Param("originKey")
	if !validation.ValidateOriginKey(key) {
		common.ErrorResponse(c, http.StatusBadRequest, "origin key must look like 1.352,103.820")
		return
	}

	removed, err := h.service.Invalidate(c.Request.Context(), key)
	if err != nil {
		common.HandleServiceError(c, common.NewInternalError("failed to invalidate cache entry", err), "")
		return
	}
	if !removed {
		common.AppErrorResponse(c, common.NewNotFoundError("no cache entry for origin key", nil))
		return
	}

	common.SuccessResponse(c, gin.H{"originKey": key, "removed": true})
}

// CleanupCache removes expired entries
func (h *Handler) CleanupCache(c *gin.Context) {
	removed, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		common.HandleServiceError(c, common.NewInternalError("failed to clean up cache", err), "")
		return
	}

	common.SuccessResponse(c, gin.H{"removed": removed})
}

// mapError turns input errors into 400s
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, geo.ErrInvalidCoordinate) || errors.Is(err, ErrInvalidDestinations) {
		return common.NewBadRequestError(err.Error(), err)
	}
	return err
}

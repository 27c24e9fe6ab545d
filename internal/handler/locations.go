package handler

import (
	"net/http"

	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/service"

	"github.com/gin-gonic/gin"
)

type LocationsHandler struct{ svc service.LocationService }

func NewLocationsHandler(svc service.LocationService) *LocationsHandler {
	return &LocationsHandler{svc: svc}
}

// GetOccupancy godoc
// @Summary      Location occupancy
// @Description  Current occupancy and utilization for one storage location.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Location UUID"
// @Success      200 {object} dto.OccupancyResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/locations/{id}/occupancy [get]
func (h *LocationsHandler) GetOccupancy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetOccupancy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List storage locations
// @Description  Paginated occupancy view across the yard, filterable by area and allocation mode.
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        area_id query string false "Yard area"
// @Param        mode    query string false "linear_capacity | slot"
// @Param        page    query int    false "Page (default 1)"
// @Param        limit   query int    false "Records per page (default 50)"
// @Success      200 {object} dto.LocationListResponse
// @Router       /v1/locations [get]
func (h *LocationsHandler) List(c *gin.Context) {
	filter := dto.LocationFilter{
		AreaID: c.Query("area_id"),
		Mode:   c.Query("mode"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 50),
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

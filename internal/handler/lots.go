package handler

import (
	"net/http"
	"strconv"

	"github.com/Bushels/PipeVault-sub014/internal/apierror"
	"github.com/Bushels/PipeVault-sub014/internal/dto"
	"github.com/Bushels/PipeVault-sub014/internal/middleware"
	"github.com/Bushels/PipeVault-sub014/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LotsHandler struct{ svc service.LotService }

func NewLotsHandler(svc service.LotService) *LotsHandler { return &LotsHandler{svc: svc} }

// Create godoc
// @Summary      Register an expected lot
// @Description  Creates a lot in pending_delivery ahead of physical arrival. Tenant is taken from the auth token; admins may act on behalf of a tenant via tenant_id.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateLotRequest true "Expected lot"
// @Success      201  {object} dto.LotResponse
// @Failure      400  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/lots [post]
func (h *LotsHandler) Create(c *gin.Context) {
	var req dto.CreateLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.AuthContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ConfirmArrival godoc
// @Summary      Confirm physical arrival
// @Description  Reconciles measured against estimated quantity, reserves capacity at the target location and moves the lot to in_storage. Retries are rejected with 409 once the lot has left pending_delivery.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Lot UUID"
// @Param        body body dto.ConfirmArrivalRequest true "Measured count and target location"
// @Success      200  {object} dto.ArrivalResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/lots/{id}/arrival [post]
func (h *LotsHandler) ConfirmArrival(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.ConfirmArrivalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConfirmArrival(c.Request.Context(), middleware.AuthContext(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SchedulePickup godoc
// @Summary      Schedule an outbound pickup
// @Description  Full-quantity pickups move the lot to pending_pickup. Partial pickups split off a new lot for the picked quantity and leave the remainder in storage.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Lot UUID"
// @Param        body body dto.SchedulePickupRequest true "Pickup quantity and shipment"
// @Success      200  {object} dto.PickupResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/lots/{id}/pickup [post]
func (h *LotsHandler) SchedulePickup(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.SchedulePickupRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SchedulePickup(c.Request.Context(), middleware.AuthContext(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmDeparture godoc
// @Summary      Confirm the truck left the yard
// @Description  Moves a pending_pickup lot to in_transit and releases its storage capacity.
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.StatusResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/lots/{id}/departure [post]
func (h *LotsHandler) ConfirmDeparture(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ConfirmDeparture(c.Request.Context(), middleware.AuthContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmDelivery godoc
// @Summary      Confirm delivery at destination
// @Description  Moves an in_transit lot to the terminal delivered status.
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.StatusResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/lots/{id}/delivery [post]
func (h *LotsHandler) ConfirmDelivery(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ConfirmDelivery(c.Request.Context(), middleware.AuthContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reject godoc
// @Summary      Reject an expected lot
// @Description  Moves a pending_delivery lot to the terminal rejected status. Requires supervisor role.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Lot UUID"
// @Param        body body dto.RejectLotRequest true "Rejection reason"
// @Success      200  {object} dto.StatusResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/lots/{id}/reject [post]
func (h *LotsHandler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.RejectLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Reject(c.Request.Context(), middleware.AuthContext(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CorrectAttributes godoc
// @Summary      Correct item attributes
// @Description  Applies an explicit correction to a lot's item attributes. Only allowed before the lot leaves the yard. Requires supervisor role.
// @Tags         lots
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Lot UUID"
// @Param        body body dto.CorrectAttributesRequest true "Fields to correct"
// @Success      200  {object} dto.LotResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/lots/{id}/attributes [patch]
func (h *LotsHandler) CorrectAttributes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.CorrectAttributesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CorrectAttributes(c.Request.Context(), middleware.AuthContext(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a lot
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Lot UUID"
// @Success      200 {object} dto.LotResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/lots/{id} [get]
func (h *LotsHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), middleware.AuthContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List lots
// @Description  Paginated list of the caller's lots, filterable by status, location and reference.
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        status       query string false "Lifecycle status"
// @Param        location_id  query string false "Location UUID"
// @Param        reference_id query string false "Customer reference"
// @Param        page         query int    false "Page (default 1)"
// @Param        limit        query int    false "Records per page (default 50)"
// @Success      200 {object} dto.LotListResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/lots [get]
func (h *LotsHandler) List(c *gin.Context) {
	filter := dto.LotFilter{
		Status:      c.Query("status"),
		ReferenceID: c.Query("reference_id"),
		Page:        queryInt(c, "page", 1),
		Limit:       queryInt(c, "limit", 50),
	}
	if raw := c.Query("location_id"); raw != "" {
		locID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid location_id"))
			return
		}
		filter.LocationID = &locID
	}
	resp, err := h.svc.List(c.Request.Context(), middleware.AuthContext(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListEvents godoc
// @Summary      List a lot's lifecycle events
// @Description  Ordered transition history for audit and customer-facing tracking.
// @Tags         lots
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "Lot UUID"
// @Param        page  query int    false "Page (default 1)"
// @Param        limit query int    false "Records per page (default 50)"
// @Success      200 {object} dto.LotEventListResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/lots/{id}/events [get]
func (h *LotsHandler) ListEvents(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListEvents(c.Request.Context(), middleware.AuthContext(c), id, queryInt(c, "page", 1), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

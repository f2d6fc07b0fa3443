package handler

import (
	"net/http"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/service"
	"shipmgmt/pkg/pagination"
	"shipmgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type ShipmentHandler struct {
	shipmentService service.ShipmentService
}

func NewShipmentHandler(shipmentService service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipmentService: shipmentService}
}

func (h *ShipmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	shipments := router.Group("/api/shipments")
	{
		shipments.GET("", middleware.RequirePermission("shipment_read"), h.ListShipments)
		shipments.GET("/my", middleware.RequirePermission("shipment_read_own"), h.ListMyShipments)
		shipments.POST("", middleware.RequirePermission("shipment_write"), h.CreateShipment)
		shipments.GET("/:id", middleware.RequirePermission("shipment_read"), h.GetShipment)
		shipments.PATCH("/:id/status", middleware.RequirePermission("shipment_write"), h.UpdateStatus)
		shipments.GET("/:id/events", middleware.RequirePermission("shipment_read"), h.ListTrackingEvents)
	}

	// Public tracking by code, no auth required
	router.GET("/api/track/:code", h.TrackByCode)
}

// CreateShipment quotes and persists a shipment for the caller
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	shipment, err := h.shipmentService.CreateShipment(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, shipment))
}

// GetShipment returns a single shipment
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	shipment, err := h.shipmentService.GetShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, shipment))
}

// TrackByCode returns a shipment and its tracking history by tracking code
func (h *ShipmentHandler) TrackByCode(c *gin.Context) {
	shipment, events, err := h.shipmentService.TrackByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"shipment": shipment,
		"events":   events,
	}))
}

// ListShipments returns a page of all shipments
func (h *ShipmentHandler) ListShipments(c *gin.Context) {
	p := pagination.Parse(c)

	shipments, total, err := h.shipmentService.ListShipments(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"shipments": shipments,
		"meta":      p.NewMeta(total),
	}))
}

// ListMyShipments returns a page of the caller's shipments
func (h *ShipmentHandler) ListMyShipments(c *gin.Context) {
	p := pagination.Parse(c)

	shipments, total, err := h.shipmentService.ListUserShipments(c.Request.Context(), c.GetString("userID"), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"shipments": shipments,
		"meta":      p.NewMeta(total),
	}))
}

// UpdateStatus advances a shipment through its lifecycle
func (h *ShipmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateShipmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	shipment, err := h.shipmentService.UpdateStatus(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, shipment))
}

// ListTrackingEvents returns the tracking history for a shipment
func (h *ShipmentHandler) ListTrackingEvents(c *gin.Context) {
	events, err := h.shipmentService.ListTrackingEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, events))
}

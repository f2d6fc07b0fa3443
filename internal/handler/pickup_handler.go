package handler

import (
	"net/http"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/service"
	"shipmgmt/pkg/pagination"
	"shipmgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type PickupHandler struct {
	pickupService service.PickupService
}

func NewPickupHandler(pickupService service.PickupService) *PickupHandler {
	return &PickupHandler{pickupService: pickupService}
}

func (h *PickupHandler) RegisterRoutes(router *gin.RouterGroup) {
	pickups := router.Group("/api/pickups")
	{
		pickups.GET("", middleware.RequirePermission("pickup_read"), h.ListPickups)
		pickups.GET("/my", middleware.RequirePermission("pickup_write"), h.ListMyPickups)
		pickups.POST("", middleware.RequirePermission("pickup_write"), h.RequestPickup)
		pickups.GET("/:id", middleware.RequirePermission("pickup_read"), h.GetPickup)
		pickups.POST("/:id/confirm", middleware.RequirePermission("pickup_read"), h.ConfirmPickup)
		pickups.POST("/:id/complete", middleware.RequirePermission("pickup_read"), h.CompletePickup)
		pickups.POST("/:id/cancel", middleware.RequirePermission("pickup_write"), h.CancelPickup)
	}
}

// RequestPickup schedules a carrier pickup for the caller
func (h *PickupHandler) RequestPickup(c *gin.Context) {
	var req service.RequestPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	pickup, err := h.pickupService.RequestPickup(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pickup))
}

// GetPickup returns a single pickup
func (h *PickupHandler) GetPickup(c *gin.Context) {
	pickup, err := h.pickupService.GetPickup(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pickup))
}

// ListPickups returns a page of all pickups
func (h *PickupHandler) ListPickups(c *gin.Context) {
	p := pagination.Parse(c)

	pickups, total, err := h.pickupService.ListPickups(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"pickups": pickups,
		"meta":    p.NewMeta(total),
	}))
}

// ListMyPickups returns a page of the caller's pickups
func (h *PickupHandler) ListMyPickups(c *gin.Context) {
	p := pagination.Parse(c)

	pickups, total, err := h.pickupService.ListUserPickups(c.Request.Context(), c.GetString("userID"), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"pickups": pickups,
		"meta":    p.NewMeta(total),
	}))
}

// ConfirmPickup marks a requested pickup as confirmed by the carrier
func (h *PickupHandler) ConfirmPickup(c *gin.Context) {
	pickup, err := h.pickupService.ConfirmPickup(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pickup))
}

// CompletePickup marks a confirmed pickup as completed
func (h *PickupHandler) CompletePickup(c *gin.Context) {
	pickup, err := h.pickupService.CompletePickup(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pickup))
}

// CancelPickup cancels a pickup before completion
func (h *PickupHandler) CancelPickup(c *gin.Context) {
	pickup, err := h.pickupService.CancelPickup(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pickup))
}

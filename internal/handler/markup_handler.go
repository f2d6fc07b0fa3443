package handler

import (
	"net/http"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/service"
	"shipmgmt/pkg/pagination"
	"shipmgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type MarkupHandler struct {
	markupService service.MarkupService
}

func NewMarkupHandler(markupService service.MarkupService) *MarkupHandler {
	return &MarkupHandler{markupService: markupService}
}

func (h *MarkupHandler) RegisterRoutes(router *gin.RouterGroup) {
	rules := router.Group("/api/markup-rules")
	{
		rules.GET("", middleware.RequirePermission("markup_read"), h.ListRules)
		rules.POST("", middleware.RequirePermission("markup_write"), h.CreateRule)
		rules.PUT("/:id", middleware.RequirePermission("markup_write"), h.UpdateRule)
		rules.DELETE("/:id", middleware.RequirePermission("markup_write"), h.DeleteRule)
	}

	// Quoting needs shipment access, not pricing configuration access
	router.POST("/api/quotes", middleware.RequirePermission("shipment_write"), h.Quote)
}

// ListRules returns a page of markup rules
func (h *MarkupHandler) ListRules(c *gin.Context) {
	p := pagination.Parse(c)

	rules, total, err := h.markupService.ListRules(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"rules": rules,
		"meta":  p.NewMeta(total),
	}))
}

// CreateRule registers a markup rule for a (category, carrier) pair
func (h *MarkupHandler) CreateRule(c *gin.Context) {
	var req service.CreateMarkupRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.markupService.CreateRule(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateRule patches a markup rule
func (h *MarkupHandler) UpdateRule(c *gin.Context) {
	var req service.UpdateMarkupRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.markupService.UpdateRule(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// DeleteRule removes a markup rule
func (h *MarkupHandler) DeleteRule(c *gin.Context) {
	if err := h.markupService.DeleteRule(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Markup rule deleted successfully"}))
}

// Quote prices a prospective shipment without persisting anything
func (h *MarkupHandler) Quote(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.markupService.Quote(c.Request.Context(), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

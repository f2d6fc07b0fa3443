package handler

import (
	"net/http"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/service"
	"shipmgmt/pkg/pagination"
	"shipmgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	{
		payments.GET("", middleware.RequirePermission("payment_read"), h.ListMyPayments)
		payments.POST("", middleware.RequirePermission("payment_write"), h.CreatePayment)
		payments.GET("/:id", middleware.RequirePermission("payment_read"), h.GetPayment)
	}

	subs := router.Group("/api/subscriptions")
	{
		subs.GET("/active", middleware.RequirePermission("payment_read"), h.GetActiveSubscription)
		subs.POST("", middleware.RequirePermission("payment_write"), h.CreateSubscription)
		subs.POST("/:id/cancel", middleware.RequirePermission("payment_write"), h.CancelSubscription)
	}
}

// CreatePayment charges the caller through the payment provider
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// GetPayment returns a single payment
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}

// ListMyPayments returns a page of the caller's payments
func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	p := pagination.Parse(c)

	payments, total, err := h.paymentService.ListUserPayments(c.Request.Context(), c.GetString("userID"), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"payments": payments,
		"meta":     p.NewMeta(total),
	}))
}

// CreateSubscription starts a recurring plan for the caller
func (h *PaymentHandler) CreateSubscription(c *gin.Context) {
	var req service.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sub, err := h.paymentService.CreateSubscription(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sub))
}

// GetActiveSubscription returns the caller's active subscription
func (h *PaymentHandler) GetActiveSubscription(c *gin.Context) {
	sub, err := h.paymentService.GetActiveSubscription(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

// CancelSubscription cancels a subscription
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.paymentService.CancelSubscription(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

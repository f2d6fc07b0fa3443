package handler

import (
	"net/http"

	"shipmgmt/internal/middleware"
	"shipmgmt/internal/service"
	"shipmgmt/pkg/pagination"
	"shipmgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/api/audit-logs")
	{
		logs.GET("", middleware.RequirePermission("audit_read"), h.ListLogs)
	}
}

// ListLogs returns a page of audit log entries, newest first
func (h *AuditHandler) ListLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.ListLogs(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"logs": logs,
		"meta": p.NewMeta(total),
	}))
}

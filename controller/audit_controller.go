// controller/audit_controller.go
package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/daaef/fainzy-cms/audit"
	cms_errors "github.com/daaef/fainzy-cms/errors"
	"github.com/daaef/fainzy-cms/util"
)

type AuditController struct {
	auditService audit.Service
	executor     *audit.Executor
}

func NewAuditController(auditService audit.Service, executor *audit.Executor) *AuditController {
	return &AuditController{auditService: auditService, executor: executor}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/audit-logs")
	{
		logs.GET("", ac.QueryLogs)
		logs.GET("/:container/:id", ac.DocumentHistory)
	}
	cleanup := r.Group("/audit-cleanup")
	{
		cleanup.POST("/preview", ac.PreviewCleanup)
		cleanup.POST("/run", ac.RunCleanup)
	}
}

// QueryLogs endpoint
func (ac *AuditController) QueryLogs(c *gin.Context) {
	filter := audit.QueryFilter{
		Container:  c.Query("container"),
		DocumentID: c.Query("documentId"),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid from timestamp", cms_errors.ErrInvalidTimeRange)
			return
		}
		filter.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid to timestamp", cms_errors.ErrInvalidTimeRange)
			return
		}
		filter.To = to
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid limit", cms_errors.ErrInvalidRecordData)
			return
		}
		filter.Limit = limit
	}

	entries, err := ac.auditService.QueryLogs(c.Request.Context(), filter)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit logs", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DocumentHistory endpoint
func (ac *AuditController) DocumentHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid limit", cms_errors.ErrInvalidRecordData)
			return
		}
		limit = parsed
	}

	entries, err := ac.auditService.DocumentHistory(c.Request.Context(), c.Param("container"), c.Param("id"), limit)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch document history", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type cleanupRequest struct {
	Container  string `json:"container"`
	DocumentID string `json:"documentId"`
}

// PreviewCleanup endpoint: classifies without deleting
func (ac *AuditController) PreviewCleanup(c *gin.Context) {
	ac.runCleanup(c, false)
}

// RunCleanup endpoint: deletes everything the policy no longer retains
func (ac *AuditController) RunCleanup(c *gin.Context) {
	ac.runCleanup(c, true)
}

func (ac *AuditController) runCleanup(c *gin.Context, apply bool) {
	var req cleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid cleanup request", cms_errors.ErrInvalidRecordData)
			return
		}
	}
	if (req.Container == "") != (req.DocumentID == "") {
		util.RespondWithError(c, http.StatusBadRequest, "container and documentId must be provided together", cms_errors.ErrInvalidRecordData)
		return
	}

	var (
		result audit.CleanupResult
		err    error
	)
	ctx := c.Request.Context()
	switch {
	case req.Container != "" && apply:
		result, err = ac.executor.Cleanup(ctx, req.Container, req.DocumentID)
	case req.Container != "":
		result, err = ac.executor.Preview(ctx, req.Container, req.DocumentID)
	case apply:
		result, err = ac.executor.CleanupAll(ctx)
	default:
		result, err = ac.executor.PreviewAll(ctx)
	}
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Cleanup failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// controller/document_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daaef/fainzy-cms/audit"
	cms_errors "github.com/daaef/fainzy-cms/errors"
	"github.com/daaef/fainzy-cms/middleware"
	"github.com/daaef/fainzy-cms/model"
	"github.com/daaef/fainzy-cms/service"
	"github.com/daaef/fainzy-cms/util"
)

type DocumentController struct {
	documents *service.DocumentService
}

func NewDocumentController(documents *service.DocumentService) *DocumentController {
	return &DocumentController{documents: documents}
}

// RegisterRoutes registers the API routes
func (dc *DocumentController) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	{
		documents.POST("/:container", dc.CreateDocument)
		documents.GET("/:container/:id", dc.GetDocument)
		documents.PUT("/:container/:id", dc.UpdateDocument)
		documents.DELETE("/:container/:id", dc.DeleteDocument)
	}
}

// mutationContext assembles the audit hook inputs from the request: the gin
// context itself is the request bag shared between the before and after
// phases.
func mutationContext(c *gin.Context) audit.MutationContext {
	mc := audit.MutationContext{
		Bag: c,
		Client: audit.ClientMeta{
			ForwardedFor: c.GetHeader("X-Forwarded-For"),
			RealIP:       c.GetHeader("X-Real-Ip"),
			RemoteAddr:   c.Request.RemoteAddr,
			UserAgent:    c.Request.UserAgent(),
		},
	}
	if name, ok := c.Get(middleware.ActorNameKey); ok {
		mc.Actor.Name, _ = name.(string)
	}
	if id, ok := c.Get(middleware.ActorIDKey); ok {
		if v, ok := id.(int64); ok {
			mc.Actor.ID = &v
		}
	}
	return mc
}

// CreateDocument endpoint
func (dc *DocumentController) CreateDocument(c *gin.Context) {
	var doc model.Record
	if err := c.ShouldBindJSON(&doc); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid document data", cms_errors.ErrInvalidRecordData)
		return
	}

	created, err := dc.documents.Create(c.Request.Context(), mutationContext(c), c.Param("container"), doc)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to create document", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetDocument endpoint
func (dc *DocumentController) GetDocument(c *gin.Context) {
	doc, err := dc.documents.Get(c.Request.Context(), c.Param("container"), c.Param("id"))
	if err != nil {
		if errors.Is(err, cms_errors.ErrRecordNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Document not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateDocument endpoint
func (dc *DocumentController) UpdateDocument(c *gin.Context) {
	var doc model.Record
	if err := c.ShouldBindJSON(&doc); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid document data", cms_errors.ErrInvalidRecordData)
		return
	}

	updated, err := dc.documents.Update(c.Request.Context(), mutationContext(c), c.Param("container"), c.Param("id"), doc)
	if err != nil {
		if errors.Is(err, cms_errors.ErrRecordNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Document not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to update document", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteDocument endpoint
func (dc *DocumentController) DeleteDocument(c *gin.Context) {
	err := dc.documents.Delete(c.Request.Context(), mutationContext(c), c.Param("container"), c.Param("id"))
	if err != nil {
		if errors.Is(err, cms_errors.ErrRecordNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Document not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

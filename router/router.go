// router/router.go

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/daaef/fainzy-cms/controller"
	"github.com/daaef/fainzy-cms/middleware"
)

func SetupRouter(
	documentController *controller.DocumentController,
	auditController *controller.AuditController,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Actor())

	api := router.Group("/api/v1")

	documentController.RegisterRoutes(api)
	auditController.RegisterRoutes(api)

	return router
}

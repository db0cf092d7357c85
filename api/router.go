package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/api/handlers"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/assemble"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/search"
	syncservice "github.com/docmirror/docmirror/services/sync"
	"github.com/docmirror/docmirror/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, syncService *syncservice.Service, searchService *search.Service, assembler *assemble.Service, docs *docstore.Store, validator *validation.Validator) {
	router.GET("/health", health())

	handlers.SetupSync(router, logger, syncService, validator)
	handlers.SetupSearch(router, logger, searchService, validator)
	handlers.SetupDocuments(router, logger, syncService, docs)
	handlers.SetupChat(router, logger, assembler, validator)
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	return router
}

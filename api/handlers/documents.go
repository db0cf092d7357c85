package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
	syncservice "github.com/docmirror/docmirror/services/sync"
)

func SetupDocuments(router *gin.Engine, logger logger.Logger, service *syncservice.Service, docs *docstore.Store) {
	router.GET("/documents", handleListDocuments(docs))
	router.DELETE("/documents/:id", handleDeleteDocument(service, logger))
	router.POST("/reindex", handleReindex(service, logger))
}

func handleListDocuments(docs *docstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, docs.All(), http.StatusOK, nil)
	}
}

func handleDeleteDocument(service *syncservice.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !service.Delete(id) {
			logger.Warn("delete requested for unknown document", "id", id)
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{"document not found"})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleReindex(service *syncservice.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := service.ForceReindex()
		logger.Info("manual reindex complete", "tokens", stats.Tokens, "documents", stats.Documents)

		writeResponse(c, stats, http.StatusOK, nil)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/drive"
	"github.com/docmirror/docmirror/logger"
	syncservice "github.com/docmirror/docmirror/services/sync"
	"github.com/docmirror/docmirror/validation"
)

type SyncRequest struct {
	FolderID    string `form:"folder_id" json:"folder_id" validate:"valid_folder_id"`
	Incremental bool   `form:"incremental" json:"incremental"`
}

type RecursiveSyncRequest struct {
	FolderID string `form:"folder_id" json:"folder_id" validate:"required,valid_folder_id"`
}

func SetupSync(router *gin.Engine, logger logger.Logger, service *syncservice.Service, validator *validation.Validator) {
	router.GET("/drive/sync", handleSync(service, logger, validator))
	router.GET("/drive/sync-recursive", handleSyncRecursive(service, logger, validator))
	router.GET("/drive/shared", handleSharedWithMe(service, logger))
}

func handleSync(service *syncservice.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SyncRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from sync request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate sync request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		summary, err := service.Sync(c.Request.Context(), request.FolderID, request.Incremental)
		if err != nil {
			writeSyncError(c, logger, err)
			return
		}

		writeResponse(c, summary, http.StatusOK, nil)
	}
}

func handleSyncRecursive(service *syncservice.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := RecursiveSyncRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from recursive sync request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate recursive sync request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		summary, err := service.SyncRecursive(c.Request.Context(), request.FolderID)
		if err != nil {
			writeSyncError(c, logger, err)
			return
		}

		writeResponse(c, summary, http.StatusOK, nil)
	}
}

func handleSharedWithMe(service *syncservice.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		files, err := service.SharedWithMe(c.Request.Context())
		if err != nil {
			writeSyncError(c, logger, err)
			return
		}

		writeResponse(c, files, http.StatusOK, nil)
	}
}

func writeSyncError(c *gin.Context, logger logger.Logger, err error) {
	c.Abort()
	switch {
	case errors.Is(err, syncservice.ErrSyncInProgress):
		writeResponse(c, nil, http.StatusConflict, []string{err.Error()})
	case errors.Is(err, syncservice.ErrMissingFolderID):
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
	case errors.Is(err, drive.ErrNotAuthenticated):
		writeResponse(c, nil, http.StatusUnauthorized, []string{err.Error()})
	default:
		logger.Error("sync failed", "err", err.Error())
		writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
	}
}

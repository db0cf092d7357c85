package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/search"
	"github.com/docmirror/docmirror/validation"
)

type SearchRequest struct {
	Query string `form:"query" json:"query" validate:"valid_query"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/search", handleSearch(service, logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		results := service.Search(request.Query)

		writeResponse(c, results, http.StatusOK, nil)
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/assemble"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/validation"
)

type ChatRequest struct {
	Message string `json:"message" validate:"valid_query"`
	MaxDocs int    `json:"max_docs"`
}

type ChatResponse struct {
	Answer  string            `json:"answer"`
	Context string            `json:"context"`
	Sources []assemble.Source `json:"sources"`
	Table   []docstore.Row    `json:"table,omitempty"`
}

func SetupChat(router *gin.Engine, logger logger.Logger, assembler *assemble.Service, validator *validation.Validator) {
	router.POST("/chat", handleChat(assembler, logger, validator))
}

func handleChat(assembler *assemble.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ChatRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from chat request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate chat request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		assembled := assembler.Assemble(request.Message, request.MaxDocs)

		writeResponse(c, ChatResponse{
			Answer:  answerFrom(assembled),
			Context: assembled.Context,
			Sources: assembled.Sources,
			Table:   assembled.Table,
		}, http.StatusOK, nil)
	}
}

// answerFrom falls back to the top retrieved chunk when no generation step
// is wired in.
func answerFrom(assembled assemble.Result) string {
	if len(assembled.Chunks) == 0 {
		return "I could not find anything relevant in the synced documents."
	}
	return strings.TrimSpace(assembled.Chunks[0])
}

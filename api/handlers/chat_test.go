package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

var chatHandlerTestCases = []testCase{
	{
		name:           "NoBody",
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "MissingMessage",
		requestBody:    map[string]any{"other": "field"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "WhitespaceMessage",
		requestBody:    map[string]any{"message": "   "},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "ValidMessage",
		requestBody:    map[string]any{"message": "production numbers"},
		expectedStatus: http.StatusOK,
	},
}

func TestHandleChatValidation(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range chatHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/chat", defaultTestRequestHeaders, testCase.requestBody, nil)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
		})
	}
}

func TestHandleChatAssemblesContext(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	server.syncCorpus(assert, map[string]string{
		"informe.txt": "La producción de la turbina subió este mes.",
	})

	requestBody := map[string]any{"message": "produccion turbina"}
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/chat", defaultTestRequestHeaders, requestBody, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	responseMap := decodeResponse(assert, w)
	data := responseMap["data"].(map[string]any)

	assert.Contains(data["answer"], "Document: informe.txt")
	assert.Contains(data["context"], "Retrieved context")

	sources := data["sources"].([]any)
	assert.Len(sources, 1)
	assert.Equal("informe.txt", sources[0].(map[string]any)["name"])
	assert.Equal("text", sources[0].(map[string]any)["type"])
}

func TestHandleChatNoMatchesGivesFallbackAnswer(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	requestBody := map[string]any{"message": "nothing matches this"}
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/chat", defaultTestRequestHeaders, requestBody, nil)
	assert.Equal(http.StatusOK, w.Code)

	responseMap := decodeResponse(assert, w)
	data := responseMap["data"].(map[string]any)
	assert.Equal("I could not find anything relevant in the synced documents.", data["answer"])
	assert.Equal("(no context available)", data["context"])
}

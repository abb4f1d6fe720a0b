package transform_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	transformctrl "github.com/eric2788/vidpost/internal/controllers/transform"
	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/eric2788/vidpost/internal/services/transform"
	"github.com/gofiber/fiber/v3"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completer struct {
	err error
}

func (c completer) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "# " + req.Messages[1].Content},
	}}}, nil
}

type transcripts map[string]string

func (m transcripts) Read(key string) ([]byte, error) {
	if v, ok := m[key]; ok {
		return []byte(v), nil
	}
	return nil, storage.ErrObjectNotFound
}

func post(t *testing.T, app *fiber.App, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/api/ai/transform", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	// the first request builds the language detector
	res, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second, FailOnTimeout: true})
	require.NoError(t, err)
	return res
}

func newApp(c transform.Completer) *fiber.App {
	app := fiber.New()
	transformctrl.NewController(app, transform.New(c, transcripts{"vid.txt": "hello there"}, ""))
	return app
}

func TestTransformRoute(t *testing.T) {
	res := post(t, newApp(completer{}), `{"videoKey":"vid"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "# hello there", body.Message.Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, body.Message.Role)
}

func TestTransformRoute_Errors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, post(t, newApp(completer{}), `{}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, post(t, newApp(completer{}), `{"videoKey":"other"}`).StatusCode)
	assert.Equal(t, http.StatusBadGateway, post(t, newApp(completer{err: errors.New("down")}), `{"videoKey":"vid"}`).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, newApp(nil), `{"videoKey":"vid"}`).StatusCode)
}

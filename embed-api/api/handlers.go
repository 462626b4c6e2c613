package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/gateway"
)

var errEmptyPayload = errors.New("payload is required")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Register mounts the internal embed function and the authenticated text
// route.
func Register(e *echo.Echo, gate *auth.Gate, embedder Embedder, logger *log.Logger) {
	gateway.MountFunction(e, "/api/embed", EmbedFunction(embedder), logger)
	gateway.Mount(e, http.MethodGet, "/api/embed/text", gate.Wrap(EmbedTextHandler(embedder, logger)), logger)
}

// EmbedFunction serves EMBEDDING requests from other functions.
func EmbedFunction(embedder Embedder) gateway.PayloadHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req domain.EmbeddingRequest
		if err := sonic.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if req.Type != domain.Embedding {
			return nil, fmt.Errorf("unsupported request type %q, expect [%s]", req.Type, domain.Embedding)
		}
		if req.Payload == "" {
			return nil, errEmptyPayload
		}
		vector, err := embedder.Embed(ctx, req.Payload)
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(domain.EmbeddingResponse{Embedded: vector})
	}
}

// EmbedTextHandler embeds the text query parameter for an authenticated
// caller.
func EmbedTextHandler(embedder Embedder, logger *log.Logger) auth.AuthedHandler {
	return func(ctx context.Context, req gateway.Request, user auth.User) (gateway.Response, error) {
		text, _ := req.Query("text")
		if text == "" {
			gateway.SetErrorStage(ctx, "validate")
			return gateway.BadRequest("text is required"), nil
		}
		vector, err := embedder.Embed(ctx, text)
		if err != nil {
			gateway.SetErrorStage(ctx, "embed")
			logger.WithError(err).WithField("subject", user.SubjectID).Error("embed text")
			return gateway.BadRequest("failed to embed text"), nil
		}
		return gateway.JSON(http.StatusOK, domain.EmbeddingResponse{Embedded: vector})
	}
}

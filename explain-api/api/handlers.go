package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/transport"
)

const (
	TypeExplainTextInSentence = "explain-text-in-sentence"
	ModelGPT                  = "gpt"
)

// Explainer produces an explanation for a phrase in context.
type Explainer interface {
	Explain(ctx context.Context, text, sentence string) (*domain.Explanation, error)
}

// EventPublisher hands telemetry to the side channel without blocking.
type EventPublisher interface {
	Publish(ctx context.Context, ev transport.Event)
}

// Register wires up the explain route behind the auth gate.
func Register(e *echo.Echo, gate *auth.Gate, explainer Explainer, pub EventPublisher, logger *log.Logger) {
	gateway.Mount(e, http.MethodGet, "/api/explain", gate.Wrap(ExplainHandler(explainer, pub, logger)), logger)
}

type explainQuery struct {
	Type     string
	Model    string
	Text     string
	Sentence string
}

func parseExplainQuery(req gateway.Request) (explainQuery, error) {
	if req.QueryStringParameters == nil {
		return explainQuery{}, gateway.Invalid("require queries")
	}
	q := explainQuery{Model: ModelGPT}
	q.Type, _ = req.Query("type")
	if m, ok := req.Query("model"); ok && m != "" {
		q.Model = m
	}
	q.Text, _ = req.Query("text")
	q.Sentence, _ = req.Query("sentence")

	if q.Type != TypeExplainTextInSentence {
		return explainQuery{}, gateway.Invalid("unsupported type, expect [" + TypeExplainTextInSentence + "]")
	}
	if q.Model != ModelGPT {
		return explainQuery{}, gateway.Invalid("unsupported model, expect [" + ModelGPT + "]")
	}
	if q.Text == "" || q.Sentence == "" {
		return explainQuery{}, gateway.Invalid("text and sentence are required for " + ModelGPT)
	}
	return q, nil
}

// ExplainHandler explains a phrase in its sentence and records the exchange
// as an ADD_EXPLAIN_LOG event.
func ExplainHandler(explainer Explainer, pub EventPublisher, logger *log.Logger) auth.AuthedHandler {
	return func(ctx context.Context, req gateway.Request, user auth.User) (gateway.Response, error) {
		q, err := parseExplainQuery(req)
		if err != nil {
			if resp, ok := gateway.Reject(err); ok {
				gateway.SetErrorStage(ctx, "validate")
				return resp, nil
			}
			return gateway.Response{}, err
		}

		explanation, err := explainer.Explain(ctx, q.Text, q.Sentence)
		if err != nil {
			gateway.SetErrorStage(ctx, "explain")
			logger.WithError(err).WithField("subject", user.SubjectID).Error("explain text")
			return gateway.BadRequest("failed to explain text"), nil
		}

		entry := domain.ExplainLog{
			ID:        uuid.NewString(),
			UserID:    user.ID(),
			SubjectID: user.SubjectID,
			Request:   domain.ExplainRequest{Text: q.Text, Sentence: q.Sentence},
			Response:  *explanation,
			CreatedAt: time.Now().UnixMilli(),
		}
		if ev, err := transport.NewEvent(transport.AddExplainLog, entry); err != nil {
			logger.WithError(err).Warn("encode explain log event")
		} else {
			pub.Publish(ctx, ev)
		}

		return gateway.JSON(http.StatusOK, explanation)
	}
}

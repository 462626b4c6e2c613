package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

const (
	defaultSuggestLimit = 5
	maxSuggestLimit     = 50
)

// VectorIndex stores and searches match embeddings.
type VectorIndex interface {
	UpsertMatch(ctx context.Context, info domain.MatchInfo, vector []float32) error
	Similar(ctx context.Context, vector []float32, exclude string, limit uint64) ([]storage.Match, error)
}

// Service embeds match profiles through the EMBED function and indexes them.
type Service struct {
	transport transport.Transport
	embed     transport.Target
	index     VectorIndex
	log       *log.Logger
}

func NewService(t transport.Transport, embed transport.Target, index VectorIndex, logger *log.Logger) *Service {
	return &Service{transport: t, embed: embed, index: index, log: logger}
}

// Register mounts the authenticated explore routes and the internal
// ADD_USER_MATCH_INFO function.
func Register(e *echo.Echo, gate *auth.Gate, s *Service, logger *log.Logger) {
	gateway.Mount(e, http.MethodPost, "/api/explore/embed", gate.Wrap(s.EmbedProfileHandler()), logger)
	gateway.Mount(e, http.MethodPost, "/api/explore/suggest", gate.Wrap(s.SuggestHandler()), logger)
	gateway.MountFunction(e, "/api/explore", s.AddUserMatchInfoFunction(), logger)
}

// Vectorize asks the EMBED function for the vector of text.
func (s *Service) Vectorize(ctx context.Context, text string) ([]float32, error) {
	payload, err := sonic.Marshal(domain.EmbeddingRequest{Type: domain.Embedding, Payload: text})
	if err != nil {
		return nil, err
	}
	res, err := s.transport.Request(ctx, s.embed, payload)
	if err != nil {
		return nil, err
	}
	var out domain.EmbeddingResponse
	if err := sonic.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedded) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return out.Embedded, nil
}

// AddUserMatch embeds info and stores it keyed by info.UserID.
func (s *Service) AddUserMatch(ctx context.Context, info domain.MatchInfo) ([]float32, error) {
	if info.UserID == "" {
		return nil, errors.New("match info requires user id")
	}
	if err := info.Validate(); err != nil {
		return nil, gateway.Invalid(err.Error())
	}
	vector, err := s.Vectorize(ctx, info.EmbedText())
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if err := s.index.UpsertMatch(ctx, info, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func decodeProfile(body string) (domain.MatchInfo, error) {
	var info domain.MatchInfo
	if body == "" {
		return info, gateway.Invalid("match info is required")
	}
	if err := sonic.UnmarshalString(body, &info); err != nil {
		return info, gateway.Invalid("cannot unmarshal user match")
	}
	return info, nil
}

// EmbedProfileHandler stores the caller's match profile.
func (s *Service) EmbedProfileHandler() auth.AuthedHandler {
	return func(ctx context.Context, req gateway.Request, user auth.User) (gateway.Response, error) {
		info, err := decodeProfile(req.Body)
		if err == nil {
			info.UserID = user.ID()
			var vector []float32
			if vector, err = s.AddUserMatch(ctx, info); err == nil {
				return gateway.JSON(http.StatusOK, domain.EmbeddingResponse{Embedded: vector})
			}
		}
		if resp, ok := gateway.Reject(err); ok {
			gateway.SetErrorStage(ctx, "validate")
			return resp, nil
		}
		gateway.SetErrorStage(ctx, "embed")
		s.log.WithError(err).WithField("user", user.ID()).Error("add user match")
		return gateway.BadRequest("cannot add user match"), nil
	}
}

// SuggestHandler returns stored users closest to the described profile.
func (s *Service) SuggestHandler() auth.AuthedHandler {
	return func(ctx context.Context, req gateway.Request, user auth.User) (gateway.Response, error) {
		limit := uint64(defaultSuggestLimit)
		if raw, ok := req.Query("limit"); ok && raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || n == 0 || n > maxSuggestLimit {
				gateway.SetErrorStage(ctx, "validate")
				return gateway.BadRequest("invalid limit"), nil
			}
			limit = n
		}
		info, err := decodeProfile(req.Body)
		if err != nil {
			resp, _ := gateway.Reject(err)
			gateway.SetErrorStage(ctx, "validate")
			return resp, nil
		}

		vector, err := s.Vectorize(ctx, info.EmbedText())
		if err == nil {
			var matches []storage.Match
			if matches, err = s.index.Similar(ctx, vector, user.ID(), limit); err == nil {
				return gateway.JSON(http.StatusOK, matches)
			}
		}
		gateway.SetErrorStage(ctx, "suggest")
		s.log.WithError(err).WithField("user", user.ID()).Error("suggest users")
		return gateway.BadRequest("cannot suggest users"), nil
	}
}

// AddUserMatchInfoFunction serves ADD_USER_MATCH_INFO requests from other
// functions.
func (s *Service) AddUserMatchInfoFunction() gateway.PayloadHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req domain.AddUserMatchInfoRequest
		if err := sonic.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if req.Type != domain.AddUserMatchInfo {
			return nil, fmt.Errorf("unsupported request type %q, expect [%s]", req.Type, domain.AddUserMatchInfo)
		}
		vector, err := s.AddUserMatch(ctx, req.MatchInfo)
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(domain.EmbeddingResponse{Embedded: vector})
	}
}

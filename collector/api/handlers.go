package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/storage"
)

var (
	errMissingUser   = errors.New("invalid user id")
	errNoExplainLog  = errors.New("can not get explain log")
	errInvalidFormat = errors.New("invalid GetCollectingLogRequest")
)

// ExplainLogReader reads back what the collector stored.
type ExplainLogReader interface {
	LeastReadExplainLog(ctx context.Context, userID string) (*domain.ExplainLog, error)
	ExplainLogs(ctx context.Context, userID string, page domain.Pagination) ([]domain.ExplainLog, domain.Pagination, error)
}

// Register mounts the internal collect function serving explain-log reads.
func Register(e *echo.Echo, logs ExplainLogReader, logger *log.Logger) {
	gateway.MountFunction(e, "/api/collect", CollectFunction(logs, logger), logger)
}

// CollectFunction answers GET_EXPLAIN_LOG with the caller's least reviewed
// log and GET_EXPLAIN_LOG_BATCH with one page of logs.
func CollectFunction(logs ExplainLogReader, logger *log.Logger) gateway.PayloadHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req domain.GetExplainLogRequest
		if err := sonic.Unmarshal(payload, &req); err != nil {
			return nil, errInvalidFormat
		}
		if req.Type != domain.GetExplainLog && req.Type != domain.GetExplainLogBatch {
			return nil, fmt.Errorf("unsupported request type %q, expect [%s, %s]", req.Type, domain.GetExplainLog, domain.GetExplainLogBatch)
		}
		userID := req.Payload.UserID
		if userID == "" {
			return nil, errMissingUser
		}
		entry := logger.WithFields(log.Fields{"user": userID, "request_type": req.Type})

		if req.Type == domain.GetExplainLog {
			l, err := logs.LeastReadExplainLog(ctx, userID)
			if err != nil {
				if !errors.Is(err, storage.ErrNoExplainLog) {
					entry.WithError(err).Error("read explain log")
				}
				return nil, errNoExplainLog
			}
			return sonic.Marshal(l)
		}

		var page domain.Pagination
		if req.Payload.Pagination != nil {
			page = *req.Payload.Pagination
		}
		batch, next, err := logs.ExplainLogs(ctx, userID, page)
		if err != nil {
			entry.WithError(err).Error("list explain logs")
			return nil, errNoExplainLog
		}
		return sonic.Marshal(domain.ExplainLogBatch{Logs: batch, Pagination: next})
	}
}

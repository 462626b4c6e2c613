package gateway

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

type functionError struct {
	Error string `json:"error"`
}

// Mount registers h on e for the given method and path.
func Mount(e *echo.Echo, method, path string, h Handler, logger *log.Logger) {
	e.Add(method, path, Adapt(h, path, logger))
}

// MountFunction registers an internal payload handler as POST path.
func MountFunction(e *echo.Echo, path string, h PayloadHandler, logger *log.Logger) {
	e.POST(path, AdaptFunction(h, path, logger))
}

// Adapt turns h into an echo handler. A handler error is written as a 500
// carrying {"error": ...}, which the host reports as a failed invocation.
func Adapt(h Handler, route string, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, route)
		status := 0
		var herr error
		defer func() { metrics.Log(status, herr) }()

		req, err := requestFromEcho(c)
		if err != nil {
			status = http.StatusBadRequest
			SetErrorStage(ctx, "read_body")
			return writeResponse(c, BadRequest("invalid body"))
		}

		start := time.Now()
		resp, herr := h(ctx, req)
		metrics.ObserveHandler(time.Since(start))
		if herr != nil {
			status = http.StatusInternalServerError
			if logger != nil {
				logger.WithError(herr).WithField("route", route).Error("function failed")
			}
			return c.JSON(status, functionError{Error: herr.Error()})
		}
		status = resp.StatusCode
		return writeResponse(c, resp)
	}
}

// AdaptFunction turns a payload handler into an echo handler speaking the
// internal invocation protocol.
func AdaptFunction(h PayloadHandler, route string, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, route)
		status := 0
		var herr error
		defer func() { metrics.Log(status, herr) }()

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
		if err != nil {
			status = http.StatusBadRequest
			return c.JSON(status, functionError{Error: "invalid body"})
		}

		start := time.Now()
		res, herr := h(ctx, body)
		metrics.ObserveHandler(time.Since(start))
		if herr != nil {
			status = http.StatusInternalServerError
			return c.JSON(status, functionError{Error: herr.Error()})
		}
		status = http.StatusOK
		return c.Blob(status, echo.MIMEApplicationJSON, res)
	}
}

func requestFromEcho(c echo.Context) (Request, error) {
	r := c.Request()
	req := Request{Headers: make(map[string]string, len(r.Header))}
	for k, v := range r.Header {
		if len(v) > 0 {
			req.Headers[strings.ToLower(k)] = v[0]
		}
	}
	if params := c.QueryParams(); len(params) > 0 {
		req.QueryStringParameters = make(map[string]string, len(params))
		for k, v := range params {
			if len(v) > 0 {
				req.QueryStringParameters[k] = v[0]
			}
		}
	}
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return Request{}, err
		}
		req.Body = string(body)
	}
	return req, nil
}

func writeResponse(c echo.Context, resp Response) error {
	contentType := echo.MIMEApplicationJSON
	for k, v := range resp.Headers {
		if strings.EqualFold(k, echo.HeaderContentType) {
			contentType = v
			continue
		}
		c.Response().Header().Set(k, v)
	}
	return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
}

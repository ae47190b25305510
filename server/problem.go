package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/spektr-org/lens/dashboard"
	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/retail"
	"github.com/spektr-org/lens/table"
)

// Problem types (RFC 7807).
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeNoData          = "/errors/data/unavailable"
	TypePayloadTooLarge = "/errors/payload-too-large"
	TypeTimeout         = "/errors/timeout"
	TypeRateLimited     = "/errors/rate-limit-exceeded"
	TypeInternal        = "/errors/internal"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]any `json:"-"`
}

// Render implements render.Renderer.
func (p *Problem) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

// MarshalJSON flattens extensions into the document.
func (p *Problem) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, 5+len(p.Extensions))
	for k, v := range p.Extensions {
		data[k] = v
	}
	data["type"] = p.Type
	data["title"] = p.Title
	data["status"] = p.Status
	if p.Detail != "" {
		data["detail"] = p.Detail
	}
	if p.Instance != "" {
		data["instance"] = p.Instance
	}
	return json.Marshal(data)
}

// With adds an extension member.
func (p *Problem) With(key string, value any) *Problem {
	if p.Extensions == nil {
		p.Extensions = make(map[string]any)
	}
	p.Extensions[key] = value
	return p
}

func newProblem(status int, typ, title, detail, instance string) *Problem {
	return &Problem{Type: typ, Title: title, Status: status, Detail: detail, Instance: instance}
}

var errRateLimited = errors.New("too many table loads")

// badRequest marks an error caused by the request itself.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func invalid(err error) error { return &badRequest{err: err} }

// toProblem maps an error onto the problem document returned to clients.
func toProblem(err error, r *http.Request) *Problem {
	path := r.URL.Path

	var (
		loadErr   *table.LoadError
		schemaErr *retail.SchemaError
		maxErr    *http.MaxBytesError
		verrs     validator.ValidationErrors
		bad       *badRequest
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return newProblem(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)

	case errors.Is(err, errRateLimited):
		return newProblem(http.StatusTooManyRequests, TypeRateLimited, "Too Many Requests",
			"Table loads are rate limited, retry shortly", path)

	case errors.Is(err, ErrUnknownSession):
		return newProblem(http.StatusNotFound, TypeNotFound, "Session Not Found", err.Error(), path)

	case errors.As(err, &maxErr):
		return newProblem(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			"The upload exceeds the maximum allowed size", path).With("limit", maxErr.Limit)

	case errors.As(err, &schemaErr):
		return newProblem(http.StatusUnprocessableEntity, TypeNoData, "No Data Available",
			err.Error(), path).With("missing", schemaErr.Missing)

	case errors.As(err, &loadErr), errors.Is(err, dashboard.ErrNoData):
		return newProblem(http.StatusUnprocessableEntity, TypeNoData, "No Data Available", err.Error(), path)

	case errors.As(err, &verrs):
		fields := make([]map[string]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
		}
		return newProblem(http.StatusBadRequest, TypeValidation, "Validation Failed",
			verrs.Error(), path).With("errors", fields)

	case errors.Is(err, engine.ErrInvalidFilter),
		errors.Is(err, engine.ErrInvalidQuery),
		errors.As(err, &bad):
		return newProblem(http.StatusBadRequest, TypeValidation, "Validation Failed", err.Error(), path)

	default:
		return newProblem(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred", path)
	}
}

// fail logs err and writes its problem document.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	problem := toProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", problem.Status))

	if reqID != "" {
		problem.With("trace_id", reqID)
	}
	render.Render(w, r, problem)
}

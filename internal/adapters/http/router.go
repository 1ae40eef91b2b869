package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/error-review-admin/internal/config"
	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
	"github.com/kirillkom/error-review-admin/internal/core/usecase"
	"github.com/kirillkom/error-review-admin/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	submitter ports.ErrorSubmitter
	review    ports.ReviewService
	auth      ports.Authenticator
	metrics   *metrics.HTTPServerMetrics
	logins    *hostLimiter
}

func NewRouter(
	cfg config.Config,
	submitter ports.ErrorSubmitter,
	review ports.ReviewService,
	auth ports.Authenticator,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		submitter: submitter,
		review:    review,
		auth:      auth,
		metrics:   httpMetrics,
		logins:    newHostLimiter(cfg.LoginRateLimitPerMin, time.Minute),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/auth/login", rt.login)
	mux.HandleFunc("POST /v1/auth/logout", rt.logout)

	mux.HandleFunc("POST /v1/errors", rt.submitError)
	mux.HandleFunc("GET /v1/errors", rt.listQueue)
	mux.HandleFunc("GET /v1/errors/export.xlsx", rt.exportErrors)
	mux.HandleFunc("GET /v1/errors/{id}", rt.reviewError)
	mux.HandleFunc("POST /v1/errors/{id}/review", rt.saveReview)
	mux.HandleFunc("GET /v1/dashboard", rt.dashboard)

	var handler http.Handler = mux
	handler = sessionMiddleware(handler, rt.auth, rt.sessionCookieOptions())
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	RawError string `json:"rawError" validate:"notblank"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (rt *Router) submitError(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[submitRequest](r)
	if err != nil {
		rt.recordSubmission("invalid")
		writeError(w, err)
		return
	}

	record, err := rt.submitter.Submit(r.Context(), req.RawError, req.Language)
	if err != nil {
		rt.recordSubmission(submissionResult(err))
		writeError(w, err)
		return
	}
	rt.recordSubmission("accepted")
	writeJSON(w, http.StatusAccepted, record)
}

func (rt *Router) listQueue(w http.ResponseWriter, r *http.Request) {
	records, err := rt.review.Queue(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.ErrorRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (rt *Router) reviewError(w http.ResponseWriter, r *http.Request) {
	page, err := rt.review.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type reviewRequest struct {
	Title       string `json:"title" validate:"max=300"`
	Explanation string `json:"explanation"`
	RootCause   string `json:"rootCause"`
	FixedCode   string `json:"fixedCode"`
	Prevention  string `json:"prevention"`
	Status      string `json:"status" validate:"required"`
}

func (rt *Router) saveReview(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[reviewRequest](r)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := rt.review.Save(r.Context(), domain.ReviewCommand{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Explanation: req.Explanation,
		RootCause:   req.RootCause,
		FixedCode:   req.FixedCode,
		Prevention:  req.Prevention,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordReview(string(record.Status))
	}
	slog.Info("review_saved",
		"request_id", requestIDFromContext(r.Context()),
		"error_id", record.ID,
		"status", record.Status,
		"editor", subjectFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.review.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportErrors(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	filename := status
	if filename == "" {
		filename = string(domain.StatusPublished)
	}

	out := &attachmentWriter{
		w:           w,
		contentType: rt.review.ExportContentType(),
		filename:    fmt.Sprintf("errors-%s.xlsx", strings.ToLower(filename)),
	}
	if err := rt.review.Export(r.Context(), status, out); err != nil {
		if !out.started {
			writeError(w, err)
			return
		}
		slog.Error("export_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		panic(http.ErrAbortHandler)
	}
	if !out.started {
		out.start()
	}
}

// attachmentWriter sends download headers on the first write, so failures
// before any output still get a JSON error response.
type attachmentWriter struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	started     bool
}

func (a *attachmentWriter) start() {
	a.started = true
	a.w.Header().Set("Content-Type", a.contentType)
	a.w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.filename))
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.start()
	}
	return a.w.Write(p)
}

func (rt *Router) recordSubmission(result string) {
	if rt.metrics != nil {
		rt.metrics.RecordSubmission(result)
	}
}

func submissionResult(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrConflict):
		return "conflict"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if errors.Is(err, usecase.ErrAuthNotConfigured) {
		message = usecase.ErrAuthNotConfigured.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

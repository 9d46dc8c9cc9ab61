// Package handler exposes the directory services over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustdir/internal/directory/models"
	"trustdir/internal/directory/promotion"
	"trustdir/internal/directory/reports"
	"trustdir/internal/directory/resolve"
	"trustdir/internal/directory/search"
	"trustdir/internal/identity/classify"
	id "trustdir/pkg/domain"
	dErrors "trustdir/pkg/domain-errors"
	"trustdir/pkg/platform/httputil"
	"trustdir/pkg/platform/middleware/admin"
	"trustdir/pkg/platform/middleware/auth"
	"trustdir/pkg/requestcontext"
)

// RoleAdmin is the token role required on moderation routes.
const RoleAdmin = "admin"

type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) (*resolve.Result, error)
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Applications interface {
	Submit(ctx context.Context, req *models.SubmitApplicationRequest) (*models.Application, error)
}

type Promoter interface {
	Approve(ctx context.Context, appID id.ApplicationID) (*promotion.Outcome, error)
	Reject(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error)
}

type Reports interface {
	Create(ctx context.Context, req *models.CreateReportRequest) (*models.Report, error)
	Update(ctx context.Context, reportID id.ReportID, req *models.UpdateReportRequest) (*models.Report, error)
	AddSupport(ctx context.Context, reportID id.ReportID, fingerprint string) (*reports.SupportResult, error)
	Escalate(ctx context.Context, reportID id.ReportID) (*models.Blacklist, error)
	CreateBlacklist(ctx context.Context, req *models.CreateBlacklistRequest) (*models.Blacklist, error)
}

// Services groups the directory use cases the handler delegates to.
type Services struct {
	Resolver     Resolver
	Searcher     Searcher
	Applications Applications
	Promoter     Promoter
	Reports      Reports
}

// Handler wires directory endpoints to the directory services.
type Handler struct {
	svc          Services
	logger       *slog.Logger
	jwtValidator auth.JWTValidator
}

// New constructs a directory handler with its dependencies.
func New(svc Services, jwtValidator auth.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		svc:          svc,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the public and admin directory endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/classify", h.HandleClassify)
		r.Get("/resolve", h.HandleResolve)
		r.Get("/search", h.HandleSearch)
		r.Post("/applications", h.HandleSubmitApplication)
		r.Post("/reports", h.HandleCreateReport)
		r.Post("/reports/{id}/support", h.HandleSupport)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
			r.Use(admin.RequireRole(RoleAdmin, h.logger))
			r.Post("/applications/{id}/approve", h.HandleApprove)
			r.Post("/applications/{id}/reject", h.HandleReject)
			r.Patch("/reports/{id}", h.HandleUpdateReport)
			r.Post("/reports/{id}/escalate", h.HandleEscalate)
			r.Post("/blacklist", h.HandleCreateBlacklist)
		})
	})
}

// HandleClassify handles GET /v1/classify?q=&type=.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "q is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, classify.Classify(query, q.Get("type")))
}

// HandleResolve handles GET /v1/resolve?q=&type=&limit=.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.Resolver.Resolve(ctx, resolve.Request{
		Query: q.Get("q"),
		Hint:  q.Get("type"),
		Limit: limit,
	})
	if err != nil {
		h.logFailure(ctx, "resolve failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "query resolved",
		"request_id", requestID,
		"query_type", res.Classification.Type,
		"status", res.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSearch handles GET /v1/search?q=&limit=&sort=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.Searcher.Search(ctx, search.Query{
		Text:  q.Get("q"),
		Limit: limit,
		Order: models.ParseOrder(q.Get("sort")),
	})
	if err != nil {
		h.logFailure(ctx, "search failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSubmitApplication handles POST /v1/applications.
func (h *Handler) HandleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubmitApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.svc.Applications.Submit(ctx, req)
	if err != nil {
		h.logFailure(ctx, "application submission failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application submitted",
		"request_id", requestID,
		"application_id", app.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleCreateReport handles POST /v1/reports.
func (h *Handler) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.svc.Reports.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "report creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "report created",
		"request_id", requestID,
		"report_id", report.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, report)
}

// HandleSupport handles POST /v1/reports/{id}/support.
// The supporter fingerprint comes from the request context.
func (h *Handler) HandleSupport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.Reports.AddSupport(ctx, reportID, requestcontext.Fingerprint(ctx))
	if err != nil {
		h.logFailure(ctx, "support failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleApprove handles POST /v1/admin/applications/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.svc.Promoter.Approve(ctx, appID)
	if err != nil {
		h.logFailure(ctx, "approval failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, out)
}

// HandleReject handles POST /v1/admin/applications/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var reason string
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		reason = req.Reason
	}

	app, err := h.svc.Promoter.Reject(ctx, appID, reason)
	if err != nil {
		h.logFailure(ctx, "rejection failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleUpdateReport handles PATCH /v1/admin/reports/{id}.
func (h *Handler) HandleUpdateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.svc.Reports.Update(ctx, reportID, req)
	if err != nil {
		h.logFailure(ctx, "report update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleEscalate handles POST /v1/admin/reports/{id}/escalate.
func (h *Handler) HandleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.svc.Reports.Escalate(ctx, reportID)
	if err != nil {
		h.logFailure(ctx, "escalation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

// HandleCreateBlacklist handles POST /v1/admin/blacklist.
func (h *Handler) HandleCreateBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateBlacklistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.svc.Reports.CreateBlacklist(ctx, req)
	if err != nil {
		h.logFailure(ctx, "blacklist insert failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	level := slog.LevelError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
	default:
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"actor", requestcontext.Actor(ctx),
		"error", err,
	)
}

package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/logger"
	healthuc "github.com/kailas-cloud/searchfront/internal/usecase/health"
	viewuc "github.com/kailas-cloud/searchfront/internal/usecase/view"
)

// Server serves the view API.
type Server struct {
	views         *viewuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	upgrader      websocket.Upgrader
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(views *viewuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		views:  views,
		health: health,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers cannot send Authorization on upgrade; access is
			// checked by BearerAuthMiddleware via access_token instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.errorHandlers = []errorHandler{
		invalidRequestHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeViewNotFound),
		sentinelHandler(domain.ErrViewLimitReached, http.StatusServiceUnavailable, CodeViewLimitReached),
	}
	return s
}

// Routes mounts all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1/views", func(r chi.Router) {
		r.Post("/", s.OpenView)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(viewLogger)
			r.Get("/", s.GetView)
			r.Delete("/", s.CloseView)
			r.Post("/search", s.StartSearch)
			r.Delete("/search", s.CancelSearch)
			r.Get("/stream", s.StreamView)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// OpenView handles POST /v1/views.
func (s *Server) OpenView(w http.ResponseWriter, r *http.Request) {
	id, err := s.views.Open(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/views/"+id)
	writeJSON(w, http.StatusCreated, OpenViewResponse{ID: id})
}

// GetView handles GET /v1/views/{id}.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, page, pageSize, err := parseResultParams(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	snap, pages, err := s.views.Results(r.Context(), id, name, page, pageSize)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(&snap, pages))
}

// CloseView handles DELETE /v1/views/{id}.
func (s *Server) CloseView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSearch handles POST /v1/views/{id}/search.
func (s *Server) StartSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := parseSearchRequest(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.views.Search(r.Context(), id, req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SearchAcceptedResponse{ViewID: id, Keyword: req.Keyword()})
}

// CancelSearch handles DELETE /v1/views/{id}/search.
func (s *Server) CancelSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// viewLogger tags the request logger with the view id.
func viewLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithFields(r.Context(), zap.String("view_id", chi.URLParam(r, "id")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docdesk/internal/config"
	"docdesk/internal/logging"
	"docdesk/internal/routing"
	"docdesk/internal/services"
	"docdesk/internal/triage"
)

// maxJSONBody bounds request bodies other than uploads.
const maxJSONBody = 1 << 20

type apiServer struct {
	bind      string
	logger    *slog.Logger
	svc       *triage.Service
	maxUpload int64
	handler   http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc *triage.Service, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Server.Bind),
		logger:    logging.NewComponentLogger(logger, "api"),
		svc:       svc,
		maxUpload: cfg.MaxUploadBytes(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/docs", srv.handleList)
	mux.HandleFunc("GET /api/docs/{id}", srv.handleGet)
	mux.HandleFunc("GET /api/docs/{id}/preview", srv.handlePreview)
	mux.HandleFunc("PATCH /api/docs/{id}/corrections", srv.handleCorrections)
	mux.HandleFunc("POST /api/docs/{id}/route", srv.handleRoute)
	mux.HandleFunc("POST /api/docs/{id}/classify", srv.handleClassify)
	mux.HandleFunc("POST /api/docs/{id}/auto-route", srv.handleAutoRoute)
	mux.HandleFunc("POST /api/classify", srv.handleBulkClassify)
	mux.HandleFunc("POST /api/auto-route", srv.handleBulkAutoRoute)
	mux.HandleFunc("POST /api/upload", srv.handleUpload)
	mux.HandleFunc("GET /api/actions", srv.handleActions)

	srv.handler = corsMiddleware(requestContextMiddleware(authMiddleware(cfg.Server.APIToken, mux)))
	return srv
}

// start binds the listener and registers the serve and shutdown goroutines
// on group. The server shuts down when ctx is done.
func (s *apiServer) start(ctx context.Context, group *errgroup.Group) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	})

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListDocuments(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, rec, err := s.svc.OpenDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInternal, "api", "preview", rec.FilePath, err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.OriginalFilename))
	http.ServeContent(w, r, rec.OriginalFilename, info.ModTime(), file)
}

func (s *apiServer) handleCorrections(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrBadRequest, "api", "corrections", "read body", err))
		return
	}
	patch, err := triage.DecodePatch(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.ApplyCorrections(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type routeRequest struct {
	To string `json:"to"`
}

func (s *apiServer) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := s.decodeJSON(w, r, &req, "route"); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.svc.RouteDocument(r.Context(), r.PathValue("id"), req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type classifyResponse struct {
	OK             bool   `json:"ok"`
	DocID          string `json:"docId"`
	Classification any    `json:"classification,omitempty"`
}

func (s *apiServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.ClassifyDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, classifyResponse{OK: true, DocID: rec.DocID, Classification: rec.Classification})
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

type autoRouteResponse struct {
	OK bool `json:"ok"`
	routing.Decision
}

func (s *apiServer) handleAutoRoute(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := s.decodeJSON(w, r, &req, "auto-route"); err != nil {
		s.writeError(w, r, err)
		return
	}
	decision, err := s.svc.AutoRouteDocument(r.Context(), r.PathValue("id"), req.Threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, autoRouteResponse{OK: true, Decision: decision})
}

type bulkClassifyRequest struct {
	Reclassify bool `json:"reclassify"`
}

func (s *apiServer) handleBulkClassify(w http.ResponseWriter, r *http.Request) {
	var req bulkClassifyRequest
	if err := s.decodeJSON(w, r, &req, "bulk-classify"); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.BulkClassify(r.Context(), req.Reclassify)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleBulkAutoRoute(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := s.decodeJSON(w, r, &req, "bulk-auto-route"); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.BulkAutoRoute(r.Context(), req.Threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, services.Wrap(services.ErrBadRequest, "api", "actions", fmt.Sprintf("invalid limit %q", raw), nil))
			return
		}
		limit = parsed
	}
	entries, err := s.svc.RecentActions(r.Context(), r.URL.Query().Get("doc"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: entries, Count: len(entries)})
}

type uploadResponse struct {
	Created []string `json:"created"`
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds overhead on top of the per-file limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload*8+maxJSONBody)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrBadRequest, "api", "upload", "expected multipart/form-data", err))
		return
	}

	created := make([]string, 0, 1)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrBadRequest, "api", "upload", "read multipart body", err))
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		rec, err := s.svc.UploadDocument(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		created = append(created, rec.DocID)
	}
	if len(created) == 0 {
		s.writeError(w, r, services.Wrap(services.ErrBadRequest, "api", "upload", "no files in field \"files\"", nil))
		return
	}
	s.writeJSON(w, http.StatusCreated, uploadResponse{Created: created})
}

// decodeJSON reads an optional JSON object body into dst. An empty body
// leaves dst untouched.
func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, op string) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return services.Wrap(services.ErrBadRequest, "api", op, "read body", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return services.Wrap(services.ErrBadRequest, "api", op, "invalid JSON body", err)
	}
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, errorResponse{Error: services.Code(err), Message: err.Error()})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/app"
	"github.com/Simplici0/signworks/internal/attachments"
	"github.com/Simplici0/signworks/internal/backup"
	"github.com/Simplici0/signworks/internal/config"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/reports"
	"github.com/Simplici0/signworks/internal/seed"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/validation"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type server struct {
	*app.App
	auth *authService
	log  logrus.FieldLogger
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	st, err := app.OpenStore(cfg, cfg.IsDev())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	ctx := context.Background()
	stats, err := seed.Run(ctx, st, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword, Catalog: cfg.IsDev()})
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}
	log.WithField("inserts", stats.Inserts).Info("seed finished")

	a, err := app.New(ctx, cfg, st, log)
	if err != nil {
		log.Fatalf("failed to start services: %v", err)
	}
	defer a.Close()

	srv := &server{App: a, auth: newAuthService(st, cfg.SessionSecret, cfg.SessionTTL, !cfg.IsDev()), log: log}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", httpServer.Addr)
		errs <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server stopped: %v", err)
		}
	case sig := <-shutdown:
		log.Infof("%v: start shutdown", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Errorf("could not stop server gracefully: %v", err)
			httpServer.Close()
		}
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.Metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.Metrics.Handler())
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/clients", s.handleClientsList)
		r.Post("/clients", s.handleClientCreate)
		r.Get("/clients/{id}", s.handleClientGet)
		r.Put("/clients/{id}", s.handleClientUpdate)
		r.Delete("/clients/{id}", s.handleClientDelete)

		r.Get("/materials", s.handleMaterialsList)
		r.Post("/materials", s.handleMaterialCreate)
		r.Get("/materials/{id}", s.handleMaterialGet)
		r.Put("/materials/{id}", s.handleMaterialUpdate)
		r.Delete("/materials/{id}", s.handleMaterialDelete)

		r.Get("/inks", s.handleInksList)
		r.Post("/inks", s.handleInkCreate)
		r.Get("/inks/{id}", s.handleInkGet)
		r.Put("/inks/{id}", s.handleInkUpdate)
		r.Delete("/inks/{id}", s.handleInkDelete)

		r.Get("/orders", s.handleOrdersList)
		r.Post("/orders", s.handleOrderCreate)
		r.Get("/orders/{id}", s.handleOrderGet)
		r.Put("/orders/{id}", s.handleOrderUpdate)
		r.Delete("/orders/{id}", s.handleOrderDelete)
		r.Post("/orders/{id}/status", s.handleOrderStatus)
		r.Post("/orders/{id}/payments", s.handleOrderPayment)
		r.Post("/orders/{id}/comments", s.handleOrderComment)
		r.Post("/orders/{id}/attachments", s.handleOrderAttachment)
		r.Get("/orders/{id}/attachments/{attachmentID}", s.handleOrderAttachmentURL)
		r.Get("/orders/{id}/text", s.handleQuoteText)
		r.Get("/orders/{id}/pdf", s.handleQuotePDF)
		r.Post("/pricing/preview", s.handlePricingPreview)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/reports", s.handleReport)
		r.Get("/reports/export", s.handleReportExport)

		r.Get("/settings", s.handleSettingsGet)
		r.Put("/settings", s.handleSettingsUpdate)
		r.Get("/plan", s.handlePlan)
		r.Get("/audit", s.handleAuditList)
		r.Get("/backup", s.handleBackupExport)
		r.Post("/backup", s.handleBackupImport)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// logged and reported as 500 without details.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields validation.Errors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
	case errors.Is(err, errBadRequest),
		errors.Is(err, reports.ErrUnknownFormat),
		errors.Is(err, backup.ErrInvalidBackup):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, plans.ErrLimitReached), errors.Is(err, plans.ErrFeatureUnavailable):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, attachments.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// parseListQuery reads q, page and limit plus the order filters status,
// client_id, from and to. Dates are YYYY-MM-DD or RFC 3339; a bare "to" date
// includes that whole day.
func parseListQuery(r *http.Request) (store.Query, error) {
	values := r.URL.Query()
	q := store.Query{
		Search:   strings.TrimSpace(values.Get("q")),
		ClientID: strings.TrimSpace(values.Get("client_id")),
	}
	fields := validation.Errors{}

	var err error
	if q.Page, err = parseOptionalInt(values.Get("page")); err != nil {
		fields["page"] = "page must be a positive number"
	}
	if q.Limit, err = parseOptionalInt(values.Get("limit")); err != nil {
		fields["limit"] = "limit must be a positive number"
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		q.Status = statusFromString(raw)
		if !q.Status.Valid() {
			fields["status"] = "unknown status"
		}
	}
	if q.From, err = parseDate(values.Get("from"), false); err != nil {
		fields["from"] = "from must be YYYY-MM-DD or RFC 3339"
	}
	if q.To, err = parseDate(values.Get("to"), true); err != nil {
		fields["to"] = "to must be YYYY-MM-DD or RFC 3339"
	}

	if len(fields) > 0 {
		return q, fields
	}
	return q.Normalize(), nil
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return value, nil
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

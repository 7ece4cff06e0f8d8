package main

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/reports"
	"github.com/Simplici0/signworks/internal/store"
)

const maxBackupBytes = 50 << 20

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.Reports.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleReport defaults to the current month when from/to are omitted.
func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, to := q.From, q.To
	if from.IsZero() && to.IsZero() {
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}
	report, err := s.Reports.Report(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = reports.FormatCSV
	}
	contentType, err := reports.ContentType(format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.Reports.Export(r.Context(), q, format, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("orders-%s.%s", time.Now().UTC().Format(time.DateOnly), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	current, err := s.Settings.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var next model.Settings
	if err := decodeJSON(r, &next); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.Settings.Update(r.Context(), next)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) handlePlan(w http.ResponseWriter, r *http.Request) {
	counts, err := store.CountAll(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans.UsageFor(s.State.Preferences().Plan, counts))
}

func (s *server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	listHandler(s, s.Store.ListAudit)(w, r)
}

func (s *server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Backup.Export(r.Context(), &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("signworks-backup-%s.json", time.Now().UTC().Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBackupBytes)
	stats, err := s.Backup.Import(r.Context(), r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

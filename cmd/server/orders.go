package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/quotedoc"
)

const maxUploadBytes = 20 << 20

type statusRequest struct {
	Status model.Status `json:"status"`
}

// statusFromString accepts the stored status values case-insensitively, plus
// "in_production" and "in-production" as aliases for production.
func statusFromString(raw string) model.Status {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "in_production", "in-production":
		return model.StatusProduction
	default:
		return model.Status(v)
	}
}

func (s *server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	listHandler(s, s.Orders.List)(w, r)
}

func (s *server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	getHandler(s, s.Orders.Get)(w, r)
}

func (s *server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	createHandler(s, s.Orders.Create)(w, r)
}

func (s *server) handleOrderUpdate(w http.ResponseWriter, r *http.Request) {
	updateHandler(s, s.Orders.Update)(w, r)
}

func (s *server) handleOrderDelete(w http.ResponseWriter, r *http.Request) {
	deleteHandler(s, s.Orders.Delete)(w, r)
}

func (s *server) handlePricingPreview(w http.ResponseWriter, r *http.Request) {
	var o model.ServiceOrder
	if err := decodeJSON(r, &o); err != nil {
		s.writeError(w, r, err)
		return
	}
	preview, err := s.Orders.Preview(r.Context(), o)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.ChangeStatus(r.Context(), chi.URLParam(r, "id"), statusFromString(string(req.Status)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *server) handleOrderPayment(w http.ResponseWriter, r *http.Request) {
	var p model.Payment
	if err := decodeJSON(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.AddPayment(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *server) handleOrderComment(w http.ResponseWriter, r *http.Request) {
	var c model.Comment
	if err := decodeJSON(r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Orders.AddComment(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *server) handleOrderAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid upload: %v", errBadRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file field: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	a, err := s.Orders.AddAttachment(r.Context(), chi.URLParam(r, "id"), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *server) handleOrderAttachmentURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.Orders.AttachmentURL(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	text, err := s.Quotes.Text(r.Context(), chi.URLParam(r, "id"), quotedoc.ParseView(r.URL.Query().Get("view")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *server) handleQuotePDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pdf, err := s.Quotes.PDF(r.Context(), id, quotedoc.ParseView(r.URL.Query().Get("view")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "order-"+id+".pdf"))
	_, _ = w.Write(pdf)
}

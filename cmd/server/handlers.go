package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/signworks/internal/store"
)

func listHandler[T any](s *server, list func(context.Context, store.Query) (store.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		page, err := list(r.Context(), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getHandler[T any](s *server, get func(context.Context, string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func createHandler[T any](s *server, create func(context.Context, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := create(r.Context(), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateHandler[T any](s *server, update func(context.Context, string, T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		updated, err := update(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteHandler(s *server, del func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := del(r.Context(), chi.URLParam(r, "id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleClientsList(w http.ResponseWriter, r *http.Request) {
	listHandler(s, s.Catalog.ListClients)(w, r)
}

func (s *server) handleClientGet(w http.ResponseWriter, r *http.Request) {
	getHandler(s, s.Catalog.GetClient)(w, r)
}

func (s *server) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	createHandler(s, s.Catalog.CreateClient)(w, r)
}

func (s *server) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	updateHandler(s, s.Catalog.UpdateClient)(w, r)
}

func (s *server) handleClientDelete(w http.ResponseWriter, r *http.Request) {
	deleteHandler(s, s.Catalog.DeleteClient)(w, r)
}

func (s *server) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	listHandler(s, s.Catalog.ListMaterials)(w, r)
}

func (s *server) handleMaterialGet(w http.ResponseWriter, r *http.Request) {
	getHandler(s, s.Catalog.GetMaterial)(w, r)
}

func (s *server) handleMaterialCreate(w http.ResponseWriter, r *http.Request) {
	createHandler(s, s.Catalog.CreateMaterial)(w, r)
}

func (s *server) handleMaterialUpdate(w http.ResponseWriter, r *http.Request) {
	updateHandler(s, s.Catalog.UpdateMaterial)(w, r)
}

func (s *server) handleMaterialDelete(w http.ResponseWriter, r *http.Request) {
	deleteHandler(s, s.Catalog.DeleteMaterial)(w, r)
}

func (s *server) handleInksList(w http.ResponseWriter, r *http.Request) {
	listHandler(s, s.Catalog.ListInks)(w, r)
}

func (s *server) handleInkGet(w http.ResponseWriter, r *http.Request) {
	getHandler(s, s.Catalog.GetInk)(w, r)
}

func (s *server) handleInkCreate(w http.ResponseWriter, r *http.Request) {
	createHandler(s, s.Catalog.CreateInk)(w, r)
}

func (s *server) handleInkUpdate(w http.ResponseWriter, r *http.Request) {
	updateHandler(s, s.Catalog.UpdateInk)(w, r)
}

func (s *server) handleInkDelete(w http.ResponseWriter, r *http.Request) {
	deleteHandler(s, s.Catalog.DeleteInk)(w, r)
}

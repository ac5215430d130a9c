package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/swachh-infra/internal/registry"
	"github.com/example/swachh-infra/internal/security"
)

func writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalid):
		security.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "record not found")
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// mountResource wires the standard create/list/get/update/delete routes for
// one registry collection. Registry resources carry no invariants beyond
// field validation, so one generic handler set serves them all.
func mountResource[T any, PT registry.Doc[T]](r chi.Router, col *registry.Collection[T, PT]) {
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		doc := PT(new(T))
		if err := json.NewDecoder(req.Body).Decode(doc); err != nil {
			security.WriteJSONError(w, req, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
		doc.SetEntityID("") // IDs are server-assigned
		if err := col.Create(req.Context(), doc); err != nil {
			writeRegistryError(w, req, err)
			return
		}
		writeData(w, req, http.StatusCreated, "Record created", doc)
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		docs, err := col.List(req.Context())
		if err != nil {
			writeRegistryError(w, req, err)
			return
		}
		writeData(w, req, http.StatusOK, "", docs)
	})

	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		doc, err := col.Get(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeRegistryError(w, req, err)
			return
		}
		writeData(w, req, http.StatusOK, "", doc)
	})

	r.Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
		doc := PT(new(T))
		if err := json.NewDecoder(req.Body).Decode(doc); err != nil {
			security.WriteJSONError(w, req, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
		if err := col.Update(req.Context(), chi.URLParam(req, "id"), doc); err != nil {
			writeRegistryError(w, req, err)
			return
		}
		writeData(w, req, http.StatusOK, "Record updated", doc)
	})

	r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := col.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
			writeRegistryError(w, req, err)
			return
		}
		writeData(w, req, http.StatusOK, "Record deleted", nil)
	})
}

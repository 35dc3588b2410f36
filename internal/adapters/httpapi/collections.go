package httpapi

import (
	"bizdesk/pkg/domain"
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// collection binds one entity's use cases to its routes.
type collection[T, In any] struct {
	entity domain.EntityType
	// verb completes the create message: "<Label> <verb> successfully".
	verb   string
	list   func(context.Context) ([]T, error)
	get    func(context.Context, int) (T, error)
	create func(context.Context, In) (T, domain.Result, error)
	update func(context.Context, int, In) (T, domain.Result, error)
}

// mountCollection registers GET/POST on /<collection> and GET/PUT/DELETE on
// /<collection>/{id}. Writes require a non-demo session.
func mountCollection[T, In any](r chi.Router, h *Handler, c collection[T, In]) {
	r.Route("/"+c.entity.Collection(), func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			items, err := c.list(req.Context())
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			if items == nil {
				items = []T{}
			}
			writeJSON(w, http.StatusOK, items)
		})
		r.With(h.gate.RequireWriter).Post("/", func(w http.ResponseWriter, req *http.Request) {
			var in In
			if err := decodeBody(req, &in); err != nil {
				h.writeError(w, req, err)
				return
			}
			record, _, err := c.create(req.Context(), in)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"message":        c.entity.Label() + " " + c.verb + " successfully",
				string(c.entity): record,
			})
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := h.pathID(w, req, c.entity)
			if !ok {
				return
			}
			record, err := c.get(req.Context(), id)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, record)
		})
		r.With(h.gate.RequireWriter).Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := h.pathID(w, req, c.entity)
			if !ok {
				return
			}
			var in In
			if err := decodeBody(req, &in); err != nil {
				h.writeError(w, req, err)
				return
			}
			record, _, err := c.update(req.Context(), id, in)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message":        c.entity.Label() + " updated successfully",
				string(c.entity): record,
			})
		})
		r.With(h.gate.RequireWriter).Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, ok := h.pathID(w, req, c.entity)
			if !ok {
				return
			}
			report, _, err := h.svc.Delete(req.Context(), c.entity, id)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message": c.entity.Label() + " deleted successfully",
				"cascade": report,
			})
		})
	})
}

// pathID parses the {id} segment. A non-numeric id is reported as a missing
// record.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, entity domain.EntityType) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.NotFoundError{Entity: entity})
		return 0, false
	}
	return id, true
}

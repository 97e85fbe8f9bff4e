package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

type elementTypeView struct {
	Type      types.ElementType `json:"type"`
	Defaults  map[string]any    `json:"defaults"`
	Mergeable []string          `json:"mergeable,omitempty"`
}

// GET /element-types
func (s *Server) handleElementTypes(w http.ResponseWriter, r *http.Request) {
	reg := s.editor.Registry()
	out := []elementTypeView{}
	for _, t := range reg.Types() {
		spec, err := reg.Lookup(t)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defaults, err := reg.Defaults(t)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, elementTypeView{Type: t, Defaults: defaults, Mergeable: spec.Mergeable})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /sites?tenant=
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.editor.ListSites(r.Context(), r.URL.Query().Get("tenant"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

// POST /sites
func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req types.Site
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.editor.CreateSite(r.Context(), types.Site{
		ID:              req.ID,
		TenantID:        req.TenantID,
		Title:           req.Title,
		Favicon:         req.Favicon,
		MetaDescription: req.MetaDescription,
		AnalyticsID:     req.AnalyticsID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.Site())
}

// GET /sites/{siteID}
func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	t, err := s.editor.Tree(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// PATCH /sites/{siteID}
func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	var patch types.SitePatch
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.editor.UpdateSite(r.Context(), chi.URLParam(r, "siteID"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Site())
}

// DELETE /sites/{siteID}
func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.DeleteSite(r.Context(), chi.URLParam(r, "siteID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /sites/{siteID}/published
func (s *Server) handleSetPublished(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Published *bool `json:"published"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Published == nil {
		s.writeError(w, r, fmt.Errorf("%w: published is required", types.ErrInvalidArgument))
		return
	}
	t, err := s.editor.SetPublished(r.Context(), chi.URLParam(r, "siteID"), *req.Published)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Site())
}

// GET /sites/{siteID}/tree
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	t, err := s.editor.Tree(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := BuildTreeView(s.editor.Engine(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /sites/{siteID}/rows
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	_, row, err := s.editor.AddRow(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// POST /sites/{siteID}/rows/{rowID}/columns
func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width *int `json:"width"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Width == nil {
		s.writeError(w, r, fmt.Errorf("%w: width is required", types.ErrInvalidArgument))
		return
	}
	_, col, err := s.editor.AddColumn(r.Context(), chi.URLParam(r, "siteID"), chi.URLParam(r, "rowID"), *req.Width)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

// POST /sites/{siteID}/columns/{colID}/elements
func (s *Server) handleAddElement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type types.ElementType `json:"type"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	siteID := chi.URLParam(r, "siteID")
	t, el, err := s.editor.AddElement(r.Context(), siteID, chi.URLParam(r, "colID"), req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeElement(w, r, http.StatusCreated, t, el.ID)
}

// PATCH /sites/{siteID}/elements/{elementID}
func (s *Server) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := decodeBody(w, r, &partial); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, el, err := s.editor.UpdateElement(r.Context(), chi.URLParam(r, "siteID"), chi.URLParam(r, "elementID"), partial)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeElement(w, r, http.StatusOK, t, el.ID)
}

// DELETE /sites/{siteID}/elements/{elementID}
func (s *Server) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	_, removed, err := s.editor.DeleteElement(r.Context(), chi.URLParam(r, "siteID"), chi.URLParam(r, "elementID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

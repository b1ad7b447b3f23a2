package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/dgallion1/docxref/internal/pipeline"
	"github.com/dgallion1/docxref/internal/xref"
	"github.com/go-chi/chi/v5"
)

// handleBuildDocument returns the resolved HTML.
func (s *Server) handleBuildDocument(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	var doc []byte
	if job := s.orchestrator.GetJob(buildID); job != nil {
		var ok bool
		if doc, ok = job.Document(); !ok {
			jsonError(w, "build has no document yet", http.StatusConflict)
			return
		}
	} else {
		rec, err := s.orchestrator.Archived(buildID)
		if err != nil {
			s.archiveMiss(w, buildID, err)
			return
		}
		doc = rec.Document
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc)
}

func (s *Server) handleBuildLinks(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	var report xref.LinkReport
	if !job.WithBuild(func(b *xref.Build) { report = xref.VerifyLinks(b.Tree()) }) {
		jsonError(w, "build has no document yet", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBuildRegistry(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	var report xref.RegistryReport
	if !job.WithBuild(func(b *xref.Build) { report = xref.RegistryStatus(b.Registry()) }) {
		jsonError(w, "build has no registry yet", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleTypeset receives the typesetting-complete event. The body is the
// document as the math typesetter left it.
func (s *Server) handleTypeset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "failed to read typeset document: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) == 0 {
		jsonError(w, "typeset document is required", http.StatusBadRequest)
		return
	}

	summary, err := s.orchestrator.Reconcile(r.Context(), chi.URLParam(r, "buildID"), body)
	switch {
	case errors.Is(err, pipeline.ErrBuildNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrBuildNotReady):
		jsonError(w, err.Error(), http.StatusConflict)
	case err != nil:
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	if err := s.orchestrator.DeleteJob(r.Context(), buildID); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"build_id": buildID, "deleted": true})
}

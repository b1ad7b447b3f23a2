package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docxref/internal/parser"
	"github.com/dgallion1/docxref/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	// Two uploads plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	htmlFile, htmlHeader, err := r.FormFile("html")
	if err != nil {
		jsonError(w, "html is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer htmlFile.Close()
	htmlData, err := s.readUpload(htmlFile)
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	var sourceName string
	var sourceData []byte
	if srcFile, srcHeader, err := r.FormFile("source"); err == nil {
		defer srcFile.Close()
		sourceName = sanitizeFilename(srcHeader.Filename)
		if !parser.IsSupportedExtension(sourceName) {
			jsonError(w, fmt.Sprintf("unsupported source type: %s", filepath.Ext(sourceName)), http.StatusBadRequest)
			return
		}
		if sourceData, err = s.readUpload(srcFile); err != nil {
			jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        uuid.NewString(),
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		Filename:  sanitizeFilename(htmlHeader.Filename),
		Source:    sourceName,
		Title:     r.FormValue("title"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetInput(htmlData, sourceData)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"build_id": job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/builds/%s/status", job.ID),
	})
}

func (s *Server) readUpload(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "buildID"))
	if job == nil {
		jsonError(w, "build not found", http.StatusNotFound)
	}
	return job
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	if job := s.orchestrator.GetJob(buildID); job != nil {
		writeJSON(w, http.StatusOK, job.Snapshot())
		return
	}
	rec, err := s.orchestrator.Archived(buildID)
	if err != nil {
		s.archiveMiss(w, buildID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(rec.Snapshot)
}

// archiveMiss answers a request for a build neither in memory nor on disk.
func (s *Server) archiveMiss(w http.ResponseWriter, buildID string, err error) {
	if errors.Is(err, pipeline.ErrBuildNotFound) {
		jsonError(w, "build not found", http.StatusNotFound)
		return
	}
	s.log.Error("archive read failed", "build_id", buildID, "error", err)
	jsonError(w, "archive unavailable", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

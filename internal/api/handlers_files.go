package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/hlog"

	"rag-backend/internal/helper"
	"rag-backend/internal/ingest"
	"rag-backend/internal/models"
	"rag-backend/internal/table"
)

// saveUpload stores the multipart "file" field in the temp folder and
// returns its path and the client's file name.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		jsonError(w, "No file uploaded", http.StatusBadRequest)
		return "", "", false
	}
	defer file.Close()

	filename := helper.SecureFilename(header.Filename)
	path, err := helper.SaveUpload(s.cfg.TempFolder, filename, io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to save upload")
		jsonError(w, "failed to save file", http.StatusInternalServerError)
		return "", "", false
	}
	if info, err := os.Stat(path); err == nil && info.Size() > s.cfg.MaxUploadBytes {
		os.Remove(path)
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", "", false
	}
	return path, filename, true
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	path, filename, ok := s.saveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	if !ingest.Supported(filename) {
		jsonError(w, "Unsupported file type", http.StatusBadRequest)
		return
	}

	n, err := s.deps.Ingester.IngestFile(r.Context(), path, filename)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file", filename).Msg("embedding failed")
		if errors.Is(err, models.ErrUnsupportedFormat) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Embedded %s successfully! %d chunks added.", filename, n),
		"num_chunks": n,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Sources.Sources(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleFillMissing(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	path, filename, ok := s.saveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(path)

	if !table.IsTable(filename) {
		jsonError(w, "Unsupported file type: "+filepath.Ext(filename), http.StatusBadRequest)
		return
	}

	format := s.fillFormat
	if f := r.FormValue("format"); f == "csv" || f == "xlsx" {
		format = f
	}

	outPath, report, err := s.deps.Filler.ReconstructFile(r.Context(), path, format)
	if err != nil && outPath == "" {
		hlog.FromRequest(r).Error().Err(err).Str("file", filename).Msg("fill failed")
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msg := "Missing values filled successfully."
	if err != nil {
		msg = "Missing values partially filled: " + err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"completed_file": outPath,
		"report":         report,
	})
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/audit"
	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/qa"
)

const (
	// roleHeader marks administrators. Deployments front this server
	// with an authenticating proxy that sets it.
	roleHeader = "X-Docuchat-Role"
	userHeader = "X-Docuchat-User"
)

func callerFrom(r *http.Request) qa.Caller {
	return qa.Caller{
		UserID: r.Header.Get(userHeader),
		Admin:  strings.EqualFold(r.Header.Get(roleHeader), "admin"),
	}
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type askResponse struct {
	SessionID string     `json:"session_id"`
	Answer    *qa.Answer `json:"answer"`
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Post("/ask", s.handleAsk)
	r.Get("/list_files", s.handleListFiles)
	r.Post("/upload", s.handleUpload)
	r.Delete("/delete_file/{fileID}", s.handleDeleteFile)
	r.Get("/debug_metadata", s.handleDebugMetadata)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/databases", s.handleListCorpora)
		r.Post("/switch_database", s.handleSwitchCorpus)
		if s.deps.Trail != nil {
			audit.RegisterRoutes(r, s.deps.Trail)
		}
	})
}

// record appends to the audit trail when one is configured. Trail
// failures are logged, not surfaced; the action itself succeeded.
func (s *Server) record(ctx context.Context, actor string, action audit.Action, detail string) {
	if s.deps.Trail == nil {
		return
	}
	if err := s.deps.Trail.Record(ctx, actor, action, detail); err != nil {
		log.Printf("server: audit %s: %v", action, err)
	}
}

// requireAdmin rejects non-admin callers on administrative routes.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).Admin {
			writeError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	answer, err := s.deps.QA.Ask(r.Context(), req.SessionID, callerFrom(r), req.Query)
	if err != nil {
		log.Printf("server: ask: %v", err)
		writeError(w, http.StatusBadGateway, "failed to answer the question")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{SessionID: req.SessionID, Answer: answer})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Files.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []corpus.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": s.deps.Corpora.Active(),
		"files":    files,
	})
}

// handleUpload accepts a multipart document, stores it under the
// uploads directory and indexes it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	dst := s.deps.Uploader.UploadPath(filename)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out, err := os.Create(dst)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dst)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out.Close()

	info, err := s.deps.Uploader.IngestFile(r.Context(), dst)
	if err != nil {
		os.Remove(dst)
		if errors.Is(err, corpus.ErrAlreadyIndexed) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("server: upload %s: %v", filename, err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.record(r.Context(), callerFrom(r).UserID, audit.ActionFileUploaded, info.Filename)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if !caller.Admin {
		writeError(w, http.StatusForbidden, "administrator role required")
		return
	}

	fileID := chi.URLParam(r, "fileID")
	info, err := s.deps.QA.DeleteFileID(r.Context(), caller, fileID)
	if errors.Is(err, corpus.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such file")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": info})
}

func (s *Server) handleDebugMetadata(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Files.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []corpus.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database":    s.deps.Corpora.Active(),
		"chunk_count": s.deps.Chunks.Count(),
		"file_count":  len(files),
		"files":       files,
	})
}

func (s *Server) handleListCorpora(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Corpora.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":    s.deps.Corpora.Active(),
		"databases": names,
	})
}

func (s *Server) handleSwitchCorpus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	previous := s.deps.Corpora.Active()
	known, err := s.deps.Corpora.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.deps.Corpora.Switch(r.Context(), req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	actor := callerFrom(r).UserID
	if !slices.Contains(known, req.Name) {
		s.record(r.Context(), actor, audit.ActionCorpusCreated, req.Name)
	}
	if previous != req.Name {
		s.record(r.Context(), actor, audit.ActionCorpusSwitched, fmt.Sprintf("%s -> %s", previous, req.Name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": req.Name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

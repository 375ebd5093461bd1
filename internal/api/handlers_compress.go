package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/summarizer"
)

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := s.overrides(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	job, status, err := s.newJob(header.Filename, file)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	job.Config = cfg
	job.Force = r.FormValue("force") == "true"
	resp := accepted(job)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleBatchCompress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := s.overrides(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := r.FormValue("force") == "true"

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		resp, err := s.openAndQueue(fh, cfg, force)
		if err != nil {
			results = append(results, map[string]any{
				"filename": sanitizeFilename(fh.Filename),
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) openAndQueue(fh *multipart.FileHeader, cfg *compress.Config, force bool) (map[string]any, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("failed to open file")
	}
	defer f.Close()

	job, _, err := s.newJob(fh.Filename, f)
	if err != nil {
		return nil, err
	}
	job.Config = cfg
	job.Force = force
	resp := accepted(job)
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, err
	}
	return resp, nil
}

// newJob reads an upload into a queued job. The returned status is the HTTP
// code for err.
func (s *Server) newJob(name string, r io.Reader) (*pipeline.Job, int, error) {
	filename := sanitizeFilename(name)
	if !parser.IsSupportedExtension(filename) {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	limit := s.cfg.Server.MaxUploadBytes
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", limit)
	}
	return pipeline.NewJob(filename, data), 0, nil
}

// overrides builds a per-job compression config from form fields. It
// returns nil when no field is set.
func (s *Server) overrides(r *http.Request) (*compress.Config, error) {
	cfg := s.orchestrator.Engine().Config()
	set := false

	ints := []struct {
		field string
		dst   *int
	}{
		{"min_words", &cfg.Chunking.MinWords},
		{"max_words", &cfg.Chunking.MaxWords},
		{"overlap_words", &cfg.Chunking.OverlapWords},
		{"doc_max_length", &cfg.DocMaxLength},
		{"workers", &cfg.Workers},
	}
	for _, f := range ints {
		v := strings.TrimSpace(r.FormValue(f.field))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", f.field)
		}
		*f.dst = n
		set = true
	}

	if v := strings.TrimSpace(r.FormValue("strategy")); v != "" {
		name, err := summarizer.ParseStrategy(v)
		if err != nil {
			return nil, err
		}
		if (name == summarizer.NameAbstractive || name == summarizer.NameHybrid) && s.opts.Claude == nil {
			return nil, fmt.Errorf("strategy %s requires an LLM; set ANTHROPIC_API_KEY", name)
		}
		cfg.Strategy = name
		set = true
	}

	if !set {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// accepted describes a job for the 202 response. Call it before Submit; the
// job belongs to a worker afterwards.
func accepted(job *pipeline.Job) map[string]any {
	return map[string]any{
		"filename": job.Filename,
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.jobReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleJobCriticalFacts(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.jobReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, criticalFacts(rep))
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" || name == "_" {
		name = "unnamed"
	}
	return name
}

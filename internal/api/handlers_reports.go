package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/report"
	"github.com/dgallion1/docpress/internal/reportstore"
)

const maxListLimit = 1000

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	recs, err := s.orchestrator.Store().List(r.Context(), limit)
	if err != nil {
		s.log.Error("list reports", "error", err)
		jsonError(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": recs,
		"count":   len(recs),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r, chi.URLParam(r, "reportID"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(rec.JSON)
}

func (s *Server) handleReportCriticalFacts(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r, chi.URLParam(r, "reportID"))
	if !ok {
		return
	}
	rep, err := rec.Report()
	if err != nil {
		s.log.Error("decode stored report", "report_id", rec.ID, "error", err)
		jsonError(w, "stored report is corrupt", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, criticalFacts(rep))
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	rec, ok := s.record(w, r, id)
	if !ok {
		return
	}
	if err := s.orchestrator.Store().Delete(r.Context(), id); err != nil {
		if errors.Is(err, reportstore.ErrNotFound) {
			jsonError(w, "report not found", http.StatusNotFound)
			return
		}
		s.log.Error("delete report", "report_id", id, "error", err)
		jsonError(w, "failed to delete report", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"report_id": id, "deleted": true}
	if s.opts.Exporter != nil {
		if err := s.opts.Exporter.Remove(r.Context(), rec.DocID); err != nil {
			s.log.Warn("remove exported hierarchy", "doc_id", rec.DocID, "error", err)
			resp["export_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReportSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(report.Schema())
}

// record loads a stored report, writing the error response when it cannot.
func (s *Server) record(w http.ResponseWriter, r *http.Request, id string) (*reportstore.Record, bool) {
	rec, err := s.orchestrator.Store().Get(r.Context(), id)
	if errors.Is(err, reportstore.ErrNotFound) {
		jsonError(w, "report not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.log.Error("get report", "report_id", id, "error", err)
		jsonError(w, "failed to load report", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

// jobReport resolves the report behind a job. Duplicate jobs point at the
// earlier run's stored report.
func (s *Server) jobReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusFailed:
		jsonError(w, "job failed during "+snap.Phase, http.StatusUnprocessableEntity)
		return nil, false
	case pipeline.StatusCompleted, pipeline.StatusDupSkipped:
	default:
		jsonError(w, "job is "+string(snap.Status), http.StatusConflict)
		return nil, false
	}

	if rep := job.Report(); rep != nil {
		return rep, true
	}
	rec, ok := s.record(w, r, snap.ReportID)
	if !ok {
		return nil, false
	}
	rep, err := rec.Report()
	if err != nil {
		s.log.Error("decode stored report", "report_id", rec.ID, "error", err)
		jsonError(w, "stored report is corrupt", http.StatusInternalServerError)
		return nil, false
	}
	return rep, true
}

func criticalFacts(rep *report.Report) map[string]any {
	return map[string]any{
		"document_name":  rep.DocumentName,
		"count":          len(rep.CriticalFacts),
		"critical_facts": rep.CriticalFacts,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

package web

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/logging"
	"github.com/JonMunkholm/csvcompare/internal/metrics"
	"github.com/JonMunkholm/csvcompare/internal/report"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

// uploadRuleName names the single rule of a run started through the API.
const uploadRuleName = "upload"

// CompareResponse is returned by POST /api/compare.
type CompareResponse struct {
	RunID       uuid.UUID       `json:"run_id"`
	IsError     bool            `json:"is_error"`
	DiffCount   int             `json:"diff_count"`
	Diffs       []core.DiffType `json:"diffs"`
	Headers     []string        `json:"headers,omitempty"`
	NominalRows int             `json:"nominal_rows"`
	ActualRows  int             `json:"actual_rows"`
	Duration    string          `json:"duration"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompare compares the uploaded nominal and actual files.
//
// Form fields: nominal and actual (files), config (optional CSV section of a
// rules file, as YAML or JSON). Without config every quantity must match
// exactly.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	maxSize := int64(s.cfg.Compare.MaxUploadSize)
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidForm, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	compareCfg, err := s.uploadConfig(r.FormValue("config"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	nominal, nominalHeader, err := formFile(r, "nominal", maxSize)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer nominal.Close()

	actual, actualHeader, err := formFile(r, "actual", maxSize)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer actual.Close()

	if err := s.limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", "5")
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	run := report.NewRun(report.SourceAPI)
	ctx := logging.ContextWithRunID(r.Context(), run.ID.String())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Compare.PairTimeout)
	defer cancel()

	start := time.Now()
	res, err := core.CompareReaders(ctx, nominal, actual, compareCfg)
	elapsed := time.Since(start)

	var file report.FileResult
	if err != nil {
		file = report.Failed(nominalHeader.Filename, actualHeader.Filename, err)
		metrics.ObservePair(string(rules.KindCSV), metrics.ResultError, elapsed, 0)
	} else {
		file = report.FromCompareResult(nominalHeader.Filename, actualHeader.Filename, res)
		metrics.ObservePair(string(rules.KindCSV), metrics.ResultOf(nil, res.IsError()), elapsed, res.BytesRead)
		metrics.ObserveDiffs(res.Diffs)
	}
	file.RelativePath = nominalHeader.Filename
	file.Duration = elapsed

	run.Rules = []report.RuleResult{{
		Name:  uploadRuleName,
		Kind:  string(rules.KindCSV),
		Files: []report.FileResult{file},
	}}
	run.Finish()
	metrics.ObserveRun(run.AllOkay)

	if saveErr := s.store.Save(ctx, run); saveErr != nil {
		logging.FromContext(ctx).Error("failed to save run", "error", saveErr)
	}

	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(ctx).Info("upload compared",
		"nominal", nominalHeader.Filename,
		"actual", actualHeader.Filename,
		"diffs", len(res.Diffs),
	)

	diffs := res.Diffs
	if diffs == nil {
		diffs = []core.DiffType{}
	}
	writeJSON(w, r, http.StatusOK, CompareResponse{
		RunID:       run.ID,
		IsError:     res.IsError(),
		DiffCount:   len(diffs),
		Diffs:       diffs,
		Headers:     res.Headers,
		NominalRows: res.NominalRows,
		ActualRows:  res.ActualRows,
		Duration:    elapsed.String(),
	})
}

// uploadConfig parses the optional config form field.
func (s *Server) uploadConfig(raw string) (core.CompareConfig, error) {
	cfg := core.CompareConfig{Modes: []core.Mode{core.Absolute(0)}}
	if raw != "" {
		parsed, err := rules.ParseCSVConfig([]byte(raw))
		if err != nil {
			return core.CompareConfig{}, err
		}
		cfg = parsed.CompareConfig()
	}
	if s.cfg.Compare.RequireEqualRowCount {
		cfg.RequireEqualRowCount = true
	}
	return cfg, nil
}

func formFile(r *http.Request, field string, maxSize int64) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", errNoFile, field)
	}
	if header.Size > maxSize {
		file.Close()
		return nil, nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", errFileTooLarge, field, header.Size, maxSize)
	}
	return file, header, nil
}

// handleListRuns returns the most recent runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)

	runs, err := s.store.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// handleGetRun returns the full JSON report of one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidRunID, err), http.StatusBadRequest)
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Report)
}

// handleLimiterStatus returns the current state of the comparison limiter.
// Used for monitoring and to check if the server can accept more comparisons.
func (s *Server) handleLimiterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.limiter.Status())
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

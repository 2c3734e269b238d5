package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/pkg/model"
)

// maxRunBody bounds the POST /runs request body.
const maxRunBody = 1 << 20

// handleCreateRun validates a simulation config and starts it in the
// background. Runs launched through the API always use virtual time and no
// display.
// POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	cfg := config.DefaultSimConfig()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	cfg.Virtual = true
	cfg.Display = model.DisplayNone
	cfg.LogFile = ""
	execCfg := cfg
	if err := s.admit(&execCfg); err != nil {
		respondErr(w, reqID, err)
		return
	}
	if err := execCfg.Validate(); err != nil {
		respondErr(w, reqID, err)
		return
	}

	run := &model.Run{
		ID:        "run_" + uuid.New().String(),
		State:     model.RunStatePending,
		Scheduler: cfg.Scheduler,
		Producer:  cfg.Producer,
		Consumer:  cfg.Consumer,
		Display:   cfg.Display,
		Cores:     cfg.Cores,
		Seed:      cfg.Seed,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		respondErr(w, reqID, err)
		return
	}

	s.logger.Info("run created", "run_id", run.ID, "scheduler", cfg.Scheduler, "producer", cfg.Producer, "consumer", cfg.Consumer)
	launched := *run
	s.launch(&launched, execCfg)
	respondCreated(w, reqID, run)
}

// admit applies the server's limits to an API run. Batch files resolve
// inside JobsDir; cfg.JobsFile is rewritten to the resolved path.
func (s *Server) admit(cfg *config.SimConfig) error {
	var errs []model.FieldError
	if cfg.Producer == model.ProducerBatchFile {
		switch {
		case s.config.JobsDir == "":
			errs = append(errs, model.FieldError{Field: "producer", Message: "batch-file is not available on this server"})
		case !filepath.IsLocal(cfg.JobsFile):
			errs = append(errs, model.FieldError{Field: "jobs_file", Message: "must be a relative path inside the jobs directory"})
		default:
			cfg.JobsFile = filepath.Join(s.config.JobsDir, cfg.JobsFile)
		}
	}
	if cfg.Producer == model.ProducerRandom && cfg.JobCount > s.config.MaxJobCount {
		errs = append(errs, model.FieldError{Field: "job_count", Message: fmt.Sprintf("must be at most %d", s.config.MaxJobCount)})
	}
	if step := cfg.Step.D(); step > 0 && int64(cfg.Time.D()/step) > s.config.MaxSteps {
		errs = append(errs, model.FieldError{Field: "time", Message: fmt.Sprintf("must not exceed %d steps of %v", s.config.MaxSteps, step)})
	}
	if len(errs) > 0 {
		return model.NewValidationError("run exceeds server limits", errs...)
	}
	return nil
}

// handleListRuns returns runs with pagination and an optional state filter.
// GET /api/v1/runs?limit=20&offset=0&state=COMPLETED
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, err := model.ParseListOptions(r.URL.Query())
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondList(w, reqID, runs, model.NewPagination(opts, len(runs), total))
}

// GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

// GET /api/v1/runs/{id}/jobs
func (s *Server) handleListRunJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	jobs, err := s.store.ListJobRecords(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if jobs == nil {
		jobs = []*model.JobRecord{}
	}
	respondOK(w, reqID, jobs)
}

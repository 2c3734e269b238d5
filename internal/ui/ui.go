// Package ui serves a read-only HTML dashboard of simulation runs.
package ui

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/pkg/model"
)

// UI handles the web user interface.
type UI struct {
	store  store.Store
	logger *slog.Logger
	base   string
}

// Config holds UI configuration.
type Config struct {
	// Base is the path the UI is mounted under, e.g. "/ui".
	Base string
}

// New creates a new UI handler.
func New(st store.Store, logger *slog.Logger, cfg Config) *UI {
	return &UI{
		store:  st,
		logger: logging.OrDiscard(logger).With("component", "ui"),
		base:   strings.TrimSuffix(cfg.Base, "/"),
	}
}

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleDashboard)
	r.Get("/runs/{id}", ui.HandleRunDetail)
}

// HandleDashboard renders run counts per state and a page of runs.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	runs, total, err := ui.store.ListRuns(r.Context(), opts)
	if err != nil {
		ui.renderError(w, "Failed to load runs", err)
		return
	}

	counts := make(map[string]int)
	for _, state := range model.RunStates() {
		_, n, err := ui.store.ListRuns(r.Context(), model.ListOptions{State: state, Limit: 1})
		if err != nil {
			ui.renderError(w, "Failed to load runs", err)
			return
		}
		counts[string(state)] = n
	}

	ui.render(w, http.StatusOK, "runs/list", map[string]any{
		"Title":       "Runs - schedsim",
		"Runs":        runs,
		"Counts":      counts,
		"StateFilter": opts.State,
		"Pagination":  ui.buildPagination(opts, total),
	})
}

// HandleRunDetail renders one run with its per-job results.
func (ui *UI) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := ui.store.GetRun(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load run", err)
		return
	}
	if run == nil {
		ui.renderNotFound(w, "Run not found")
		return
	}
	jobs, err := ui.store.ListJobRecords(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load job results", err)
		return
	}

	var longest float64
	for _, j := range jobs {
		longest = max(longest, j.TotalTime)
	}

	ui.render(w, http.StatusOK, "runs/detail", map[string]any{
		"Title":   fmt.Sprintf("Run %s - schedsim", run.ID),
		"Run":     run,
		"Jobs":    jobs,
		"Longest": longest,
	})
}

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	if state := r.URL.Query().Get("state"); state != "" {
		if rs := model.RunState(strings.ToUpper(state)); rs.Valid() {
			opts.State = rs
		}
	}
	return opts
}

func (ui *UI) buildPagination(opts model.ListOptions, total int) map[string]any {
	return map[string]any{
		"Total":      total,
		"Limit":      opts.Limit,
		"Offset":     opts.Offset,
		"HasMore":    opts.Offset+opts.Limit < total,
		"HasPrev":    opts.Offset > 0,
		"NextOffset": opts.Offset + opts.Limit,
		"PrevOffset": max(0, opts.Offset-opts.Limit),
	}
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	data["Base"] = ui.base

	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	ui.render(w, http.StatusInternalServerError, "error", map[string]any{
		"Title":   "Error - schedsim",
		"Message": message,
	})
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	ui.render(w, http.StatusNotFound, "error", map[string]any{
		"Title":   "Not Found - schedsim",
		"Message": message,
	})
}

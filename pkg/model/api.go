package model

import (
	"net/url"
	"strconv"
	"time"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination describes one page of a run listing.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination describes a page of count items taken at opts.Offset out
// of total.
func NewPagination(opts ListOptions, count, total int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+count < total,
	}
}

// ListOptions selects a page of runs, optionally in one state.
type ListOptions struct {
	Limit  int
	Offset int
	State  RunState // empty lists every state
}

// DefaultListOptions returns the first page of 20 runs.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// ParseListOptions reads limit, offset and state from a query string.
// Malformed values are reported together as a validation error; an
// out-of-range limit or offset is left for Clamp.
func ParseListOptions(q url.Values) (ListOptions, error) {
	opts := DefaultListOptions()
	var errs []FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	if v := q.Get("state"); v != "" {
		opts.State = RunState(v)
		if !opts.State.Valid() {
			errs = append(errs, FieldError{Field: "state", Message: "unknown run state " + strconv.Quote(v)})
		}
	}
	if len(errs) > 0 {
		return opts, NewValidationError("invalid query", errs...)
	}
	opts.Clamp()
	return opts, nil
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if !o.State.Valid() {
		o.State = ""
	}
}

package producer

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/me/schedsim/internal/clock"
	"github.com/me/schedsim/internal/scheduler"
	"github.com/me/schedsim/pkg/model"
	"gopkg.in/yaml.v3"
)

// Record is one batch entry: a release delay and an execute time.
type Record struct {
	Delay   time.Duration
	Execute time.Duration
}

// ParseError reports a malformed batch record. Record is 1-based.
type ParseError struct {
	Path   string
	Record int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Record == 0 {
		return fmt.Sprintf("batch file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("batch file %s: record %d: %v", e.Path, e.Record, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BatchFile releases jobs described by a file of (delay, execute) records.
type BatchFile struct {
	base
	path string
}

// NewBatchFile creates a batch file producer.
func NewBatchFile(sched scheduler.Scheduler, clk clock.Clock, opts Options) *BatchFile {
	return &BatchFile{
		base: newBase(model.ProducerBatchFile, sched, clk, opts.Logger),
		path: opts.JobsFile,
	}
}

// Produce reads the batch file and queues its jobs ordered by delay.
// A malformed record fails the whole batch.
func (p *BatchFile) Produce() error {
	records, err := ReadBatchFile(p.path)
	if err != nil {
		return err
	}
	for _, r := range records {
		p.create(r.Execute, r.Delay)
	}
	// Records need not be in chronological order.
	slices.SortStableFunc(p.queue, func(a, b pending) int {
		return cmp.Compare(a.delay, b.delay)
	})
	p.logger.Info("batch loaded", "path", p.path, "count", len(records))
	return nil
}

// ReadBatchFile parses path as YAML (.yaml, .yml) or CSV (anything else).
func ReadBatchFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, err = ParseYAML(f)
	default:
		records, err = ParseCSV(f)
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return records, nil
}

// ParseCSV reads headerless "delay,execute" records in seconds.
// Blank lines and lines starting with '#' are skipped.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var records []Record
	for n := 1; ; n++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Record: n, Err: err}
		}
		if len(row) != 2 {
			return nil, &ParseError{Record: n, Err: fmt.Errorf("expected 2 fields, got %d", len(row))}
		}
		delay, err := parseSeconds("delay", row[0])
		if err != nil {
			return nil, &ParseError{Record: n, Err: err}
		}
		exec, err := parseSeconds("execute time", row[1])
		if err != nil {
			return nil, &ParseError{Record: n, Err: err}
		}
		records = append(records, Record{Delay: delay, Execute: exec})
	}
	return records, nil
}

type yamlRecord struct {
	Delay   *float64 `yaml:"delay"`
	Execute *float64 `yaml:"execute"`
}

// ParseYAML reads a YAML list of {delay, execute} maps in seconds.
func ParseYAML(r io.Reader) ([]Record, error) {
	var raw []yamlRecord
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for i, yr := range raw {
		n := i + 1
		if yr.Delay == nil || yr.Execute == nil {
			return nil, &ParseError{Record: n, Err: fmt.Errorf("delay and execute are required")}
		}
		delay, err := toDuration("delay", *yr.Delay)
		if err != nil {
			return nil, &ParseError{Record: n, Err: err}
		}
		exec, err := toDuration("execute time", *yr.Execute)
		if err != nil {
			return nil, &ParseError{Record: n, Err: err}
		}
		records = append(records, Record{Delay: delay, Execute: exec})
	}
	return records, nil
}

func parseSeconds(field, s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number", field)
	}
	return toDuration(field, v)
}

func toDuration(field string, secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("%s must be a finite, non-negative number of seconds", field)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/params"
)

// Report file names inside a run directory.
const (
	BasicReportFile     = "basicReport.txt"
	ComponentReportFile = "componentReport.txt"
	SQLiteReportFile    = "report.db"
	MetricsFile         = "metrics.prom"
	EdgeListDir         = "network"
)

// New builds the reporters configured by outputs.* writing into dir.
func New(p *params.Tree, dir string, logger *slog.Logger) ([]model.Reporter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	c := &collector{}
	names := p.Strings("outputs.reports")
	var reps []model.Reporter
	for _, name := range names {
		var r model.Reporter
		var err error
		switch name {
		case "basicReport":
			var b *BasicReport
			if b, err = NewBasicReport(filepath.Join(dir, BasicReportFile)); err == nil {
				b.c, r = c, b
			}
		case "sqliteReport":
			var q *SQLiteReport
			if q, err = NewSQLiteReport(filepath.Join(dir, SQLiteReportFile)); err == nil {
				q.c, r = c, q
			}
		case "componentReport":
			r, err = NewComponentReport(filepath.Join(dir, ComponentReportFile))
		default:
			err = fmt.Errorf("unknown report %q", name)
		}
		if err != nil {
			_ = CloseAll(reps)
			return nil, err
		}
		reps = append(reps, r)
	}
	if p.Bool("outputs.network.calc_component_stats") && !slices.Contains(names, "componentReport") {
		r, err := NewComponentReport(filepath.Join(dir, ComponentReportFile))
		if err != nil {
			_ = CloseAll(reps)
			return nil, err
		}
		reps = append(reps, r)
	}
	if p.Bool("outputs.network.edge_list") {
		reps = append(reps, NewEdgeListReport(filepath.Join(dir, EdgeListDir)))
	}
	if p.Bool("outputs.metrics.enable") {
		mr := NewMetricsReport(filepath.Join(dir, MetricsFile))
		mr.c = c
		reps = append(reps, mr)
	}
	logger.Debug("reporters created", "dir", dir, "count", len(reps))
	return reps, nil
}

// CloseAll closes every reporter and joins their errors.
func CloseAll(reps []model.Reporter) error {
	var errs []error
	for _, r := range reps {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// tsvFile is a tab-separated file with a header written before the first row.
type tsvFile struct {
	f      *os.File
	w      *csv.Writer
	header bool
}

func createTSV(path string) (*tsvFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	return &tsvFile{f: f, w: w}, nil
}

func (t *tsvFile) write(header []string, rows [][]string) error {
	if !t.header {
		if err := t.w.Write(header); err != nil {
			return err
		}
		t.header = true
	}
	if err := t.w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(t.f.Name()), err)
	}
	return nil
}

func (t *tsvFile) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}

// BasicReport writes one row per step per stratum:
// run_id, t, rseed, pseed, the class values, then every counter.
type BasicReport struct {
	out *tsvFile
	c   *collector
}

// NewBasicReport creates the report file at path.
func NewBasicReport(path string) (*BasicReport, error) {
	out, err := createTSV(path)
	if err != nil {
		return nil, err
	}
	return &BasicReport{out: out, c: &collector{}}, nil
}

// Report implements model.Reporter.
func (r *BasicReport) Report(m *model.Model) error {
	s, err := r.c.collect(m)
	if err != nil {
		return err
	}
	header := append([]string{"run_id", "t", "rseed", "pseed"}, s.Classes...)
	header = append(header, s.Keys...)
	rows := make([][]string, 0, len(s.Strata))
	for _, st := range s.Strata {
		row := []string{
			m.RunID, strconv.Itoa(s.T),
			strconv.FormatInt(m.Seed, 10), strconv.FormatInt(m.Pop.Seed, 10),
		}
		row = append(row, st.Values...)
		for _, k := range s.Keys {
			row = append(row, strconv.Itoa(st.Counts[k]))
		}
		rows = append(rows, row)
	}
	return r.out.write(header, rows)
}

// Close implements model.Reporter.
func (r *BasicReport) Close() error { return r.out.Close() }

// Package runner plans and executes batches of simulation runs: every sweep
// definition is run nMC times, runs execute in parallel up to a limit, and
// each run writes its reports into its own directory under the output
// directory. A runs.tsv index lists every run with its seeds and status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/output"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/popio"
)

// ErrOutDirNotEmpty is returned when the output directory already holds files
// and Force is not set.
var ErrOutDirNotEmpty = errors.New("output directory is not empty")

// ParamsFile is the name of the effective parameters written to each run directory.
const ParamsFile = "params.yml"

// PopDir is the directory inside a run directory holding the saved population.
const PopDir = "pop"

// Options configures a batch of runs.
type Options struct {
	// Setting names an embedded setting or a setting file; empty for none.
	Setting string
	// ParamsFiles are merged over the setting in order.
	ParamsFiles []string `validate:"dive,required"`

	OutDir string `validate:"required"`
	// NMC is the number of Monte Carlo repetitions of each definition.
	NMC      int `validate:"gte=1"`
	Parallel int `validate:"gte=1"`

	// Sweeps are "param:start:stop[:step]" definitions, combined as a
	// cartesian product. They exclude SweepFile.
	Sweeps    []string `validate:"dive,required"`
	SweepFile string
	// Rows selects "start:stop" rows of SweepFile.
	Rows string

	// SavePop saves each run's population before it runs.
	SavePop  bool
	Compress bool
	// PopPath loads a saved population instead of creating one.
	PopPath string

	// Force allows writing into a non-empty OutDir.
	Force bool

	LogLevel string `validate:"omitempty,oneof=info debug trace"`
}

var optionsValidate = validator.New()

// Validate checks the options.
func (o *Options) Validate() error {
	if err := optionsValidate.Struct(o); err != nil {
		return fmt.Errorf("invalid run options: %w", err)
	}
	if len(o.Sweeps) > 0 && o.SweepFile != "" {
		return errors.New("invalid run options: sweeps and a sweep file are mutually exclusive")
	}
	if o.Rows != "" && o.SweepFile == "" {
		return errors.New("invalid run options: rows require a sweep file")
	}
	return nil
}

// Run is one planned simulation run.
type Run struct {
	ID string
	// Row is the 1-based index of the run's definition.
	Row        int
	Rep        int
	Definition Definition
	Dir        string

	RunSeed, PopSeed, NetSeed int64
	Status                    Status
	Err                       error
	Duration                  time.Duration
}

// Status is the outcome of a run.
type Status string

const (
	StatusPending  Status = "pending"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Runner executes a batch.
type Runner struct {
	opts   Options
	base   *params.Tree
	defs   []Definition
	logger *slog.Logger
}

// New validates opts, loads the parameters and resolves the sweep
// definitions. Every definition is applied to a copy of the parameters so
// configuration errors surface before any run starts.
func New(opts Options, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	base, err := params.Load(opts.Setting, opts.ParamsFiles...)
	if err != nil {
		return nil, err
	}
	defs, err := definitions(opts)
	if err != nil {
		return nil, err
	}
	for i, d := range defs {
		if err := d.Apply(base.Clone()); err != nil {
			return nil, fmt.Errorf("definition %d: %w", i+1, err)
		}
	}
	return &Runner{opts: opts, base: base, defs: defs, logger: logger}, nil
}

func definitions(opts Options) ([]Definition, error) {
	if opts.SweepFile != "" {
		var rows *Rows
		if opts.Rows != "" {
			r, err := ParseRows(opts.Rows)
			if err != nil {
				return nil, err
			}
			rows = &r
		}
		return ReadSweepFile(opts.SweepFile, rows)
	}
	sweeps := make([]Sweep, 0, len(opts.Sweeps))
	for _, s := range opts.Sweeps {
		sw, err := ParseSweep(s)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sw)
	}
	defs := Expand(sweeps)
	if len(defs) == 0 {
		return nil, errors.New("sweeps produce no values")
	}
	return defs, nil
}

// Params returns the loaded base parameters.
func (r *Runner) Params() *params.Tree { return r.base }

// Definitions returns the resolved sweep definitions.
func (r *Runner) Definitions() []Definition { return r.defs }

// Plan lists the runs of the batch: NMC runs per definition, each with a
// fresh run id.
func (r *Runner) Plan() []*Run {
	runs := make([]*Run, 0, len(r.defs)*r.opts.NMC)
	for i, d := range r.defs {
		for rep := range r.opts.NMC {
			id := uuid.NewString()
			runs = append(runs, &Run{
				ID:         id,
				Row:        i + 1,
				Rep:        rep + 1,
				Definition: d,
				Dir:        filepath.Join(r.opts.OutDir, id),
				Status:     StatusPending,
			})
		}
	}
	return runs
}

// Execute runs the plan with at most Parallel runs at once and writes the
// run index. A failed run does not stop the others; the returned error joins
// the errors of every failed run. Canceling ctx stops runs at their next
// step.
func (r *Runner) Execute(ctx context.Context, runs []*Run) error {
	if err := prepareOutDir(r.opts.OutDir, r.opts.Force); err != nil {
		return err
	}
	r.logger.Info("starting runs", "runs", len(runs), "definitions", len(r.defs),
		"parallel", r.opts.Parallel, "outdir", r.opts.OutDir)
	start := time.Now()

	var mu sync.Mutex
	var errs []error
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for _, run := range runs {
		g.Go(func() error {
			err := r.execute(gctx, run)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("run %s: %w", run.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := writeIndex(filepath.Join(r.opts.OutDir, IndexFile), runs); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info("runs finished", "runs", len(runs), "failed", len(errs),
		"duration", time.Since(start).Round(time.Millisecond))
	return errors.Join(errs...)
}

// Run plans and executes the batch.
func (r *Runner) Run(ctx context.Context) ([]*Run, error) {
	runs := r.Plan()
	return runs, r.Execute(ctx, runs)
}

func (r *Runner) execute(ctx context.Context, run *Run) (err error) {
	start := time.Now()
	logger := r.logger.With("run_id", run.ID)
	defer func() {
		run.Duration = time.Since(start)
		run.Err = err
		switch {
		case err == nil:
			run.Status = StatusDone
		case errors.Is(err, context.Canceled):
			run.Status = StatusCanceled
		default:
			run.Status = StatusFailed
			logger.Error("run failed", "row", run.Row, "rep", run.Rep, "error", err)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	p := r.base.Clone()
	if err := run.Definition.Apply(p); err != nil {
		return err
	}
	if err := os.MkdirAll(run.Dir, 0700); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	if err := writeParams(filepath.Join(run.Dir, ParamsFile), p); err != nil {
		return err
	}

	events := logging.NewEventLogger(run.Dir, r.opts.LogLevel, run.ID)
	defer events.Close()

	m, err := model.New(p, model.Options{
		RunID:   run.ID,
		Logger:  logger,
		Events:  events,
		PopPath: r.opts.PopPath,
	})
	if err != nil {
		return err
	}
	run.RunSeed, run.PopSeed, run.NetSeed = m.Seed, m.Pop.Seed, m.Pop.NetSeed

	if r.opts.SavePop {
		path, err := popio.Write(m.Pop, filepath.Join(run.Dir, PopDir), popio.WriteOptions{
			ID:       run.ID,
			Compress: r.opts.Compress,
		})
		if err != nil {
			return fmt.Errorf("saving population: %w", err)
		}
		logger.Info("population saved", "path", path)
	}

	reporters, err := output.New(p, run.Dir, logger)
	if err != nil {
		return err
	}
	runErr := m.Run(ctx, reporters...)
	closeErr := output.CloseAll(reporters)
	return errors.Join(runErr, closeErr)
}

func writeParams(path string, p *params.Tree) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing params: %w", err)
	}
	return nil
}

func prepareOutDir(dir string, force bool) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading output directory: %w", err)
	case len(entries) > 0 && !force:
		return fmt.Errorf("%s: %w (use --force to write into it)", dir, ErrOutDirNotEmpty)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}

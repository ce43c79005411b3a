package runner

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/titan-sim/titan/internal/params"
)

// Sweep varies one numeric parameter over [Start, Stop) in increments of Step.
type Sweep struct {
	Param string  `validate:"required"`
	Start float64 `validate:"ltfield=Stop"`
	Stop  float64
	Step  float64 `validate:"gt=0"`
	// Integer sweeps produce int values.
	Integer bool
}

// Assignment sets one parameter of a run.
type Assignment struct {
	Param string
	Value any
}

// Definition is the set of parameter assignments shared by the runs of one
// sweep row.
type Definition []Assignment

// String formats d as "param=value;param=value".
func (d Definition) String() string {
	parts := make([]string, len(d))
	for i, a := range d {
		parts[i] = a.Param + "=" + params.FormatScalar(a.Value)
	}
	return strings.Join(parts, ";")
}

// Apply sets every assignment on p and revalidates it.
func (d Definition) Apply(p *params.Tree) error {
	for _, a := range d {
		if err := p.Set(a.Param, a.Value); err != nil {
			return fmt.Errorf("sweep %s: %w", a.Param, err)
		}
	}
	if len(d) == 0 {
		return nil
	}
	return params.Validate(p)
}

var sweepValidate = validator.New()

// ParseSweep parses "param:start:stop[:step]". The step defaults to 1. When
// start, stop and step are all integers the sweep yields ints.
func ParseSweep(s string) (Sweep, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Sweep{}, fmt.Errorf("invalid sweep %q: expected param:start:stop[:step]", s)
	}
	nums := []string{parts[1], parts[2], "1"}
	if len(parts) == 4 {
		nums[2] = parts[3]
	}
	sw := Sweep{Param: parts[0], Integer: true}
	vals := make([]float64, 3)
	for i, n := range nums {
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return Sweep{}, fmt.Errorf("invalid sweep %q: %w", s, err)
		}
		if _, err := strconv.Atoi(n); err != nil {
			sw.Integer = false
		}
		vals[i] = f
	}
	sw.Start, sw.Stop, sw.Step = vals[0], vals[1], vals[2]
	if err := sweepValidate.Struct(sw); err != nil {
		return Sweep{}, fmt.Errorf("invalid sweep %q: %w", s, err)
	}
	return sw, nil
}

// Values lists the swept values. Float values are rounded to nine decimals
// so that repeated steps do not accumulate error.
func (sw Sweep) Values() []any {
	n := int(math.Ceil((sw.Stop-sw.Start)/sw.Step - 1e-9))
	out := make([]any, 0, n)
	for i := range n {
		v := sw.Start + float64(i)*sw.Step
		if sw.Integer {
			out = append(out, int(math.Round(v)))
		} else {
			out = append(out, math.Round(v*1e9)/1e9)
		}
	}
	return out
}

// Expand returns the cartesian product of the sweeps, the first sweep
// varying slowest. No sweeps yield one empty definition.
func Expand(sweeps []Sweep) []Definition {
	defs := []Definition{nil}
	for _, sw := range sweeps {
		var next []Definition
		for _, d := range defs {
			for _, v := range sw.Values() {
				nd := make(Definition, len(d), len(d)+1)
				copy(nd, d)
				next = append(next, append(nd, Assignment{Param: sw.Param, Value: v}))
			}
		}
		defs = next
	}
	return defs
}

// Rows is an inclusive, 1-based range of sweep file rows.
type Rows struct {
	Start int `validate:"gte=1"`
	Stop  int `validate:"gtefield=Start"`
}

// ParseRows parses "start:stop".
func ParseRows(s string) (Rows, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return Rows{}, fmt.Errorf("invalid rows %q: expected start:stop", s)
	}
	start, err := strconv.Atoi(a)
	if err != nil {
		return Rows{}, fmt.Errorf("invalid rows %q: %w", s, err)
	}
	stop, err := strconv.Atoi(b)
	if err != nil {
		return Rows{}, fmt.Errorf("invalid rows %q: %w", s, err)
	}
	r := Rows{Start: start, Stop: stop}
	if err := sweepValidate.Struct(r); err != nil {
		return Rows{}, fmt.Errorf("invalid rows %q: %w", s, err)
	}
	return r, nil
}

// ReadSweepFile reads a CSV file whose header names parameter paths and whose
// rows each define one run definition. rows limits the definitions returned;
// nil keeps them all.
func ReadSweepFile(path string, rows *Rows) ([]Definition, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening sweep file: %w", err)
	}
	defer f.Close()
	return parseSweepFile(f, rows)
}

func parseSweepFile(r io.Reader, rows *Rows) ([]Definition, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sweep file: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("sweep file has no rows")
	}
	header := records[0]
	body := records[1:]
	if rows != nil {
		if rows.Stop > len(body) {
			return nil, fmt.Errorf("rows %d:%d out of range: sweep file has %d rows", rows.Start, rows.Stop, len(body))
		}
		body = body[rows.Start-1 : rows.Stop]
	}

	defs := make([]Definition, 0, len(body))
	for i, rec := range body {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("sweep file row %d: expected %d values, got %d", i+1, len(header), len(rec))
		}
		d := make(Definition, len(header))
		for j, param := range header {
			d[j] = Assignment{Param: strings.TrimSpace(param), Value: parseValue(rec[j])}
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
